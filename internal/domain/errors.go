package domain

import "errors"

// Виды ошибок ядра. Вызывающий слой сопоставляет их через errors.Is
// и превращает в 4xx-ответы; фатальных среди них нет.
var (
	// ErrNotFound - пост или корень треда не существует.
	ErrNotFound = errors.New("not found")

	// ErrForbidden - автор не совпадает при редактировании/удалении/модерации.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation - ответ в закрытый тред, флаг на не-корневом посте,
	// некорректное значение голоса и прочие ошибки входных данных.
	ErrValidation = errors.New("validation failed")
)
