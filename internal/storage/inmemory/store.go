package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/UkralStul/civic-forum-service/internal/domain"
	"github.com/UkralStul/civic-forum-service/internal/storage"
	"github.com/google/uuid"
)

// Store реализует интерфейс Storage в памяти. Все операции сериализуются
// мьютексом, поэтому протокол переключения голоса здесь атомарен сам по себе.
type Store struct {
	mu               sync.RWMutex
	posts            map[string]*domain.Post
	votes            map[string]map[string]*domain.Vote // map[postID]map[voterID]
	childrenByParent map[string][]string                // map[parentID][]postID
	postsByRoot      map[string][]string                // map[rootID][]postID (без самого корня)
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		posts:            make(map[string]*domain.Post),
		votes:            make(map[string]map[string]*domain.Vote),
		childrenByParent: make(map[string][]string),
		postsByRoot:      make(map[string][]string),
	}
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	post.ID = uuid.NewString()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.LastActivityAt = now
	s.posts[post.ID] = post

	// Обновление индексов иерархии
	if post.ParentID != nil {
		s.childrenByParent[*post.ParentID] = append(s.childrenByParent[*post.ParentID], post.ID)
	}
	if post.RootPostID != nil {
		s.postsByRoot[*post.RootPostID] = append(s.postsByRoot[*post.RootPostID], post.ID)
	}

	return s.clone(post), nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	return s.clone(post), nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, upd storage.PostUpdate) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	if upd.Title != nil {
		post.Title = *upd.Title
	}
	if upd.Content != nil {
		post.Content = *upd.Content
	}
	if upd.Category != nil {
		post.Category = *upd.Category
	}
	if upd.IsPinned != nil {
		post.IsPinned = *upd.IsPinned
	}
	if upd.IsLocked != nil {
		post.IsLocked = *upd.IsLocked
	}
	post.UpdatedAt = time.Now().UTC()

	return s.clone(post), nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return nil
	}

	// Собираем всё поддерево обходом индекса детей
	toDelete := []string{id}
	for i := 0; i < len(toDelete); i++ {
		toDelete = append(toDelete, s.childrenByParent[toDelete[i]]...)
	}

	for _, pid := range toDelete {
		post := s.posts[pid]
		if post == nil {
			continue
		}
		if post.ParentID != nil {
			s.childrenByParent[*post.ParentID] = removeID(s.childrenByParent[*post.ParentID], pid)
		}
		if post.RootPostID != nil {
			s.postsByRoot[*post.RootPostID] = removeID(s.postsByRoot[*post.RootPostID], pid)
		}
		delete(s.posts, pid)
		delete(s.votes, pid)
		delete(s.childrenByParent, pid)
		delete(s.postsByRoot, pid)
	}

	return nil
}

func (s *Store) ListPosts(ctx context.Context, viewerID string, f storage.ListFilter) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Post, 0)
	for _, p := range s.posts {
		if f.ParentID != nil {
			if p.ParentID == nil || *p.ParentID != *f.ParentID {
				continue
			}
		} else if p.ParentID != nil {
			// Без фильтра по родителю выбираются только корневые посты
			continue
		}
		if f.Category != nil && p.Category != *f.Category {
			continue
		}
		if f.AuthorID != nil && p.AuthorID != *f.AuthorID {
			continue
		}
		if f.ProjectID != nil && (p.ProjectID == nil || *p.ProjectID != *f.ProjectID) {
			continue
		}
		matched = append(matched, p)
	}

	// Закрепленные первыми, затем по убыванию активности
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].IsPinned != matched[j].IsPinned {
			return matched[i].IsPinned
		}
		return matched[i].LastActivityAt.After(matched[j].LastActivityAt)
	})

	start := f.Offset
	if start >= len(matched) {
		return []*domain.Post{}, nil
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*domain.Post, 0, end-start)
	for _, p := range matched[start:end] {
		page = append(page, s.withAggregates(p, viewerID))
	}
	return page, nil
}

func (s *Store) ListThread(ctx context.Context, rootID, viewerID string) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.posts[rootID]
	if !ok {
		return []*domain.Post{}, nil
	}

	flat := []*domain.Post{root}
	for _, id := range s.postsByRoot[rootID] {
		if p, ok := s.posts[id]; ok {
			flat = append(flat, p)
		}
	}

	// Порядок (глубина, время создания) гарантирует, что родитель
	// всегда встречается раньше ребенка при линейном проходе
	sort.Slice(flat, func(i, j int) bool {
		if flat[i].ThreadDepth != flat[j].ThreadDepth {
			return flat[i].ThreadDepth < flat[j].ThreadDepth
		}
		return flat[i].CreatedAt.Before(flat[j].CreatedAt)
	})

	result := make([]*domain.Post, 0, len(flat))
	for _, p := range flat {
		result = append(result, s.withAggregates(p, viewerID))
	}
	return result, nil
}

func (s *Store) TouchActivity(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post, ok := s.posts[id]; ok {
		post.LastActivityAt = at
	}
	return nil
}

// === Vote Methods ===

func (s *Store) UpsertVote(ctx context.Context, postID, voterID string, voteType int) (domain.VoteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byVoter, ok := s.votes[postID]
	if !ok {
		byVoter = make(map[string]*domain.Vote)
		s.votes[postID] = byVoter
	}

	existing, ok := byVoter[voterID]
	switch {
	case !ok:
		byVoter[voterID] = &domain.Vote{
			PostID:    postID,
			VoterID:   voterID,
			VoteType:  voteType,
			CreatedAt: time.Now().UTC(),
		}
		return domain.VoteCreated, nil
	case existing.VoteType == voteType:
		// Повтор того же голоса снимает его
		delete(byVoter, voterID)
		return domain.VoteRemoved, nil
	default:
		existing.VoteType = voteType
		return domain.VoteUpdated, nil
	}
}

func (s *Store) GetVoteCount(ctx context.Context, postID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voteCountLocked(postID), nil
}

func (s *Store) GetUserVote(ctx context.Context, postID, voterID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.votes[postID][voterID]; ok {
		return v.VoteType, nil
	}
	return 0, nil
}

// === Helpers ===

func (s *Store) voteCountLocked(postID string) int {
	sum := 0
	for _, v := range s.votes[postID] {
		sum += v.VoteType
	}
	return sum
}

// withAggregates возвращает копию поста с заполненными агрегатами.
func (s *Store) withAggregates(p *domain.Post, viewerID string) *domain.Post {
	c := s.clone(p)
	c.VoteScore = s.voteCountLocked(p.ID)
	c.ReplyCount = len(s.childrenByParent[p.ID])
	if viewerID != "" {
		if v, ok := s.votes[p.ID][viewerID]; ok {
			c.ViewerVote = v.VoteType
		}
	}
	return c
}

// clone отдает наружу копию, чтобы вызывающие не мутировали хранилище.
func (s *Store) clone(p *domain.Post) *domain.Post {
	c := *p
	return &c
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
