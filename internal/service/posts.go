package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/UkralStul/civic-forum-service/internal/domain"
	"github.com/UkralStul/civic-forum-service/internal/storage"
)

const (
	// DefaultPageSize используется, когда вызывающий не задал limit.
	DefaultPageSize = 20
	// MaxPageSize - жесткий потолок размера страницы независимо от запроса.
	MaxPageSize = 100

	maxTitleLen   = 255
	maxContentLen = 10000
)

// PostService оркестрирует операции над постами: создание с вычислением
// глубины/корня и распространением активности, редактирование, удаление,
// голосование и списки. Правила авторства и блокировки тредов живут здесь.
type PostService struct {
	posts     storage.PostStore
	ledger    *VoteLedger
	assembler *ThreadAssembler
	log       *zap.Logger
}

// NewPostService создает сервис с внедренными зависимостями.
func NewPostService(posts storage.PostStore, ledger *VoteLedger, assembler *ThreadAssembler, log *zap.Logger) *PostService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostService{posts: posts, ledger: ledger, assembler: assembler, log: log}
}

// CreatePostInput - поля нового поста. ParentID == nil создает корневой пост.
type CreatePostInput struct {
	Title     string
	Content   string
	Category  domain.Category
	ParentID  *string
	ProjectID *string
}

// UpdatePostInput - изменяемые поля поста. nil-поля остаются как есть.
type UpdatePostInput struct {
	Title    *string
	Content  *string
	Category *domain.Category
}

// CreatePost создает корневой пост или ответ. Для ответа глубина и корень
// вычисляются из родителя, а ответ в закрытый тред отклоняется. После
// вставки активность распространяется на родителя и корень best-effort:
// её сбой не откатывает создание.
func (s *PostService) CreatePost(ctx context.Context, authorID string, in CreatePostInput) (*domain.Post, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content cannot be empty", domain.ErrValidation)
	}
	if len(in.Content) > maxContentLen {
		return nil, fmt.Errorf("%w: content is too long", domain.ErrValidation)
	}
	if len(in.Title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title is too long", domain.ErrValidation)
	}

	category := in.Category
	if category == "" {
		category = domain.DefaultCategory
	}
	if !domain.ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", domain.ErrValidation, category)
	}

	post := &domain.Post{
		AuthorID:  authorID,
		Title:     in.Title,
		Content:   in.Content,
		Category:  category,
		ProjectID: in.ProjectID,
	}

	var parent, root *domain.Post
	if in.ParentID == nil {
		// Заголовок обязателен только для корневых постов;
		// у ответов он может быть пустым.
		if strings.TrimSpace(in.Title) == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", domain.ErrValidation)
		}
	} else {
		var err error
		parent, err = s.posts.GetPostByID(ctx, *in.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent post: %w", err)
		}
		if parent == nil {
			return nil, fmt.Errorf("%w: parent post %s", domain.ErrNotFound, *in.ParentID)
		}

		// Корень треда: у родителя-ответа он записан явно,
		// родитель без корня сам является корнем.
		root = parent
		if parent.RootPostID != nil {
			root, err = s.posts.GetPostByID(ctx, *parent.RootPostID)
			if err != nil {
				return nil, fmt.Errorf("failed to load thread root: %w", err)
			}
			if root == nil {
				return nil, fmt.Errorf("%w: thread root %s", domain.ErrNotFound, *parent.RootPostID)
			}
		}
		if root.IsLocked {
			return nil, fmt.Errorf("%w: thread locked", domain.ErrValidation)
		}

		rootID := root.ID
		post.ParentID = &parent.ID
		post.RootPostID = &rootID
		post.ThreadDepth = parent.ThreadDepth + 1
	}

	created, err := s.posts.CreatePost(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	if parent != nil {
		s.propagateActivity(ctx, parent, root, created.CreatedAt)
	}

	return created, nil
}

// propagateActivity обновляет last_activity_at родителя и корня треда.
// Ошибки только логируются: новый ответ всплывет в сортировке по активности
// при следующем ответе.
func (s *PostService) propagateActivity(ctx context.Context, parent, root *domain.Post, at time.Time) {
	if err := s.posts.TouchActivity(ctx, parent.ID, at); err != nil {
		s.log.Warn("failed to propagate activity to parent",
			zap.String("post_id", parent.ID), zap.Error(err))
	}
	if root.ID == parent.ID {
		return
	}
	if err := s.posts.TouchActivity(ctx, root.ID, at); err != nil {
		s.log.Warn("failed to propagate activity to root",
			zap.String("post_id", root.ID), zap.Error(err))
	}
}

// UpdatePost меняет title/content/category поста. Разрешено только автору.
func (s *PostService) UpdatePost(ctx context.Context, id, authorID string, in UpdatePostInput) (*domain.Post, error) {
	post, err := s.requireAuthor(ctx, id, authorID)
	if err != nil {
		return nil, err
	}

	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, fmt.Errorf("%w: content cannot be empty", domain.ErrValidation)
		}
		if len(*in.Content) > maxContentLen {
			return nil, fmt.Errorf("%w: content is too long", domain.ErrValidation)
		}
	}
	if in.Title != nil {
		if len(*in.Title) > maxTitleLen {
			return nil, fmt.Errorf("%w: title is too long", domain.ErrValidation)
		}
		if post.IsRoot() && strings.TrimSpace(*in.Title) == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", domain.ErrValidation)
		}
	}
	if in.Category != nil && !domain.ValidCategory(*in.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", domain.ErrValidation, *in.Category)
	}

	updated, err := s.posts.UpdatePost(ctx, id, storage.PostUpdate{
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: post %s", domain.ErrNotFound, id)
	}
	return updated, nil
}

// DeletePost удаляет пост вместе со всем поддеревом ответов.
// Разрешено только автору.
func (s *PostService) DeletePost(ctx context.Context, id, authorID string) error {
	if _, err := s.requireAuthor(ctx, id, authorID); err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

// VoteOnPost передает голос в реестр после проверки существования поста.
func (s *PostService) VoteOnPost(ctx context.Context, postID, voterID string, voteType int) (*domain.VoteResult, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	if post == nil {
		return nil, fmt.Errorf("%w: post %s", domain.ErrNotFound, postID)
	}
	return s.ledger.CastVote(ctx, postID, voterID, voteType)
}

// ListPosts возвращает страницу постов. Limit ограничивается потолком
// MaxPageSize, по умолчанию DefaultPageSize; закрепленные посты первыми,
// далее по убыванию последней активности.
func (s *PostService) ListPosts(ctx context.Context, viewerID string, f storage.ListFilter) ([]*domain.Post, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.posts.ListPosts(ctx, viewerID, f)
}

// GetThread возвращает восстановленное дерево треда.
func (s *PostService) GetThread(ctx context.Context, postID, viewerID string) (*domain.ThreadNode, error) {
	return s.assembler.GetThread(ctx, postID, viewerID)
}

// SetLocked закрывает или открывает тред. Только автор и только на корне.
func (s *PostService) SetLocked(ctx context.Context, postID, authorID string, locked bool) (*domain.Post, error) {
	return s.setFlag(ctx, postID, authorID, storage.PostUpdate{IsLocked: &locked})
}

// SetPinned закрепляет или снимает закрепление. Только автор и только на корне.
func (s *PostService) SetPinned(ctx context.Context, postID, authorID string, pinned bool) (*domain.Post, error) {
	return s.setFlag(ctx, postID, authorID, storage.PostUpdate{IsPinned: &pinned})
}

func (s *PostService) setFlag(ctx context.Context, postID, authorID string, upd storage.PostUpdate) (*domain.Post, error) {
	post, err := s.requireAuthor(ctx, postID, authorID)
	if err != nil {
		return nil, err
	}
	if !post.IsRoot() {
		return nil, fmt.Errorf("%w: flags are only meaningful on root posts", domain.ErrValidation)
	}

	updated, err := s.posts.UpdatePost(ctx, postID, upd)
	if err != nil {
		return nil, fmt.Errorf("failed to update post flags: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: post %s", domain.ErrNotFound, postID)
	}
	return updated, nil
}

// requireAuthor загружает пост и проверяет совпадение автора.
func (s *PostService) requireAuthor(ctx context.Context, id, authorID string) (*domain.Post, error) {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	if post == nil {
		return nil, fmt.Errorf("%w: post %s", domain.ErrNotFound, id)
	}
	if post.AuthorID != authorID {
		return nil, fmt.Errorf("%w: post %s belongs to another author", domain.ErrForbidden, id)
	}
	return post, nil
}
