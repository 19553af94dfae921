package identity

import (
	"context"
	"sync"
)

// Identity - личность вызывающего, разрешенная вышестоящим слоем
// аутентификации один раз на запрос. Ядро форума владеет только
// стабильным строковым идентификатором; имя нужно лишь для отображения.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Resolver - внешний коллаборатор, отдающий отображаемые имена
// по идентификаторам авторов.
type Resolver interface {
	ResolveNames(ctx context.Context, ids []string) (map[string]string, error)
}

type contextKey string

const key = contextKey("identity")

// WithContext кладет личность вызывающего в контекст запроса.
func WithContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, key, id)
}

// FromContext возвращает личность вызывающего или nil для анонимного запроса.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(key).(*Identity)
	return id
}

// StaticResolver - реестр имен в памяти: для in-memory режима и тестов.
type StaticResolver struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewStaticResolver создает пустой реестр.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{names: make(map[string]string)}
}

// Register запоминает отображаемое имя пользователя.
func (r *StaticResolver) Register(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[id] = name
}

// ResolveNames возвращает имена для всех запрошенных идентификаторов.
// Незнакомый идентификатор отображается сам в себя, а не в ошибку.
func (r *StaticResolver) ResolveNames(ctx context.Context, ids []string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := r.names[id]; ok {
			result[id] = name
		} else {
			result[id] = id
		}
	}
	return result, nil
}
