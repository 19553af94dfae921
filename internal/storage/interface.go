package storage

import (
	"context"
	"time"

	"github.com/UkralStul/civic-forum-service/internal/domain"
)

// ListFilter - фильтры и пагинация для списков постов.
// Если ParentID задан, выбираются прямые ответы на него;
// иначе - только корневые посты.
type ListFilter struct {
	Category  *domain.Category
	AuthorID  *string
	ParentID  *string
	ProjectID *string
	Limit     int
	Offset    int
}

// PostUpdate - частичное обновление поста. nil-поля не трогаются.
type PostUpdate struct {
	Title    *string
	Content  *string
	Category *domain.Category
	IsPinned *bool
	IsLocked *bool
}

// PostStore определяет контракт хранилища постов.
// Чтения возвращают nil/пустые коллекции для отсутствующих строк,
// а не ошибку - "не найдено" решает сервисный слой.
type PostStore interface {
	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	UpdatePost(ctx context.Context, id string, upd PostUpdate) (*domain.Post, error)

	// DeletePost удаляет пост вместе со всем его поддеревом ответов;
	// голоса удалённых постов уходят каскадом.
	DeletePost(ctx context.Context, id string) error

	// ListPosts возвращает страницу постов с агрегатами (VoteScore,
	// ViewerVote, ReplyCount): закреплённые первыми, далее по убыванию
	// LastActivityAt.
	ListPosts(ctx context.Context, viewerID string, f ListFilter) ([]*domain.Post, error)

	// ListThread возвращает корневой пост и всех его потомков одним
	// запросом, с агрегатами, в порядке (thread_depth ASC, created_at ASC) -
	// так, чтобы родитель всегда шёл раньше ребёнка.
	ListThread(ctx context.Context, rootID, viewerID string) ([]*domain.Post, error)

	// TouchActivity обновляет last_activity_at поста.
	TouchActivity(ctx context.Context, id string, at time.Time) error
}

// VoteStore определяет контракт хранилища голосов.
type VoteStore interface {
	// UpsertVote атомарно применяет протокол переключения голоса:
	// нет строки - вставить (created); та же строка с тем же значением -
	// удалить (removed); с другим значением - перезаписать (updated).
	// Гонки на одной паре (post, voter) разрешает уникальный ключ
	// хранилища, а не чтение-потом-запись.
	UpsertVote(ctx context.Context, postID, voterID string, voteType int) (domain.VoteOutcome, error)

	// GetVoteCount возвращает знаковую сумму всех голосов поста.
	GetVoteCount(ctx context.Context, postID string) (int, error)

	// GetUserVote возвращает значение голоса пользователя или 0.
	GetUserVote(ctx context.Context, postID, voterID string) (int, error)
}

// Storage объединяет оба контракта; его реализуют in-memory и postgres
// хранилища.
type Storage interface {
	PostStore
	VoteStore
}
