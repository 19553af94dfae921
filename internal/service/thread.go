package service

import (
	"context"
	"fmt"

	"github.com/UkralStul/civic-forum-service/internal/domain"
	"github.com/UkralStul/civic-forum-service/internal/storage"
)

// ThreadAssembler восстанавливает дерево ответов из плоского результата
// одного запроса к хранилищу. Это главная оптимизация ядра: никаких
// рекурсивных выборок по узлу (N+1), только линейный проход по списку,
// упорядоченному по глубине.
type ThreadAssembler struct {
	posts storage.PostStore
}

// NewThreadAssembler создает новый сборщик тредов.
func NewThreadAssembler(posts storage.PostStore) *ThreadAssembler {
	return &ThreadAssembler{posts: posts}
}

// GetThread возвращает дерево треда, которому принадлежит пост.
// Агрегаты (сумма голосов, голос зрителя, число ответов) приходят
// из хранилища вместе с постами, без дополнительных запросов.
func (a *ThreadAssembler) GetThread(ctx context.Context, postID, viewerID string) (*domain.ThreadNode, error) {
	post, err := a.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve thread root: %w", err)
	}
	if post == nil {
		return nil, fmt.Errorf("%w: post %s", domain.ErrNotFound, postID)
	}

	// Пост знает свой корень; корневой пост - сам себе корень
	rootID := post.ID
	if post.RootPostID != nil {
		rootID = *post.RootPostID
	}

	flat, err := a.posts.ListThread(ctx, rootID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	if len(flat) == 0 {
		// Тред удалили между разрешением корня и выборкой
		return nil, fmt.Errorf("%w: thread %s", domain.ErrNotFound, rootID)
	}

	// Линейный проход по списку, упорядоченному по возрастанию глубины:
	// родитель каждого поста гарантированно уже в карте.
	nodes := make(map[string]*domain.ThreadNode, len(flat))
	var root *domain.ThreadNode
	for _, p := range flat {
		node := &domain.ThreadNode{Post: p}
		nodes[p.ID] = node

		if p.ID == rootID {
			root = node
			continue
		}
		if p.ParentID == nil {
			continue
		}
		if parent, ok := nodes[*p.ParentID]; ok {
			parent.Replies = append(parent.Replies, node)
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: thread %s", domain.ErrNotFound, rootID)
	}

	return root, nil
}
