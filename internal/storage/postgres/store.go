package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UkralStul/civic-forum-service/internal/domain"
	"github.com/UkralStul/civic-forum-service/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// selectWithAggregates - общий SELECT для списков и тредов: к колонкам поста
// подтягиваются сумма голосов, голос зрителя и число прямых ответов.
// Всё считается в одном запросе, без обхода постов по одному.
const selectWithAggregates = `p.*,
	COALESCE(vs.score, 0)     AS vote_score,
	COALESCE(uv.vote_type, 0) AS viewer_vote,
	COALESCE(rc.cnt, 0)       AS reply_count`

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Выполняем миграцию схемы. Составной первичный ключ votes даёт
	// уникальность пары (post_id, voter_id), каскад удаляет голоса
	// вместе с постом.
	if err := db.AutoMigrate(&domain.Post{}, &domain.Vote{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB оборачивает уже открытое соединение (для тестов).
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, err
	}
	// GORM заполнит ID и таймстемпы значениями по умолчанию из БД
	return post, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, upd storage.PostUpdate) (*domain.Post, error) {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if upd.Title != nil {
		updates["title"] = *upd.Title
	}
	if upd.Content != nil {
		updates["content"] = *upd.Content
	}
	if upd.Category != nil {
		updates["category"] = *upd.Category
	}
	if upd.IsPinned != nil {
		updates["is_pinned"] = *upd.IsPinned
	}
	if upd.IsLocked != nil {
		updates["is_locked"] = *upd.IsLocked
	}

	var post domain.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Post{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		// Перечитываем строку, чтобы вернуть актуальное состояние
		return tx.First(&post, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	// Рекурсивный CTE собирает всё поддерево; голоса уходят каскадом
	// по внешнему ключу votes.post_id.
	return s.db.WithContext(ctx).Exec(`
		WITH RECURSIVE subtree AS (
			SELECT id FROM posts WHERE id = ?
			UNION ALL
			SELECT p.id FROM posts p JOIN subtree s ON p.parent_id = s.id
		)
		DELETE FROM posts WHERE id IN (SELECT id FROM subtree)`, id).Error
}

func (s *Store) ListPosts(ctx context.Context, viewerID string, f storage.ListFilter) ([]*domain.Post, error) {
	q := s.aggregateQuery(ctx, viewerID)

	if f.ParentID != nil {
		q = q.Where("p.parent_id = ?", *f.ParentID)
	} else {
		// Без фильтра по родителю выбираются только корневые посты
		q = q.Where("p.parent_id IS NULL")
	}
	if f.Category != nil {
		q = q.Where("p.category = ?", *f.Category)
	}
	if f.AuthorID != nil {
		q = q.Where("p.author_id = ?", *f.AuthorID)
	}
	if f.ProjectID != nil {
		q = q.Where("p.project_id = ?", *f.ProjectID)
	}

	var posts []*domain.Post
	err := q.Order("p.is_pinned DESC, p.last_activity_at DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Scan(&posts).Error
	return posts, err
}

func (s *Store) ListThread(ctx context.Context, rootID, viewerID string) ([]*domain.Post, error) {
	var posts []*domain.Post
	// Один запрос на весь тред: корень плюс все потомки. Сортировка по
	// глубине гарантирует, что родитель идёт раньше ребёнка.
	err := s.aggregateQuery(ctx, viewerID).
		Where("p.id = ? OR p.root_post_id = ?", rootID, rootID).
		Order("p.thread_depth ASC, p.created_at ASC").
		Scan(&posts).Error
	return posts, err
}

func (s *Store) TouchActivity(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("id = ?", id).
		Update("last_activity_at", at).Error
}

// aggregateQuery строит базовый запрос к постам с джойнами агрегатов.
func (s *Store) aggregateQuery(ctx context.Context, viewerID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("posts AS p").
		Select(selectWithAggregates).
		Joins(`LEFT JOIN (SELECT post_id, SUM(vote_type) AS score FROM votes GROUP BY post_id) vs ON vs.post_id = p.id`).
		Joins(`LEFT JOIN votes uv ON uv.post_id = p.id AND uv.voter_id = ?`, viewerID).
		Joins(`LEFT JOIN (SELECT parent_id, COUNT(*) AS cnt FROM posts WHERE parent_id IS NOT NULL GROUP BY parent_id) rc ON rc.parent_id = p.id`)
}

// === Vote Methods ===

func (s *Store) UpsertVote(ctx context.Context, postID, voterID string, voteType int) (domain.VoteOutcome, error) {
	var outcome domain.VoteOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Повтор того же голоса снимает его: условный DELETE вместо
		// чтения-потом-записи.
		res := tx.Where("post_id = ? AND voter_id = ? AND vote_type = ?", postID, voterID, voteType).
			Delete(&domain.Vote{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			outcome = domain.VoteRemoved
			return nil
		}

		// Иначе атомарный upsert: гонку двух вставок на одну пару
		// разрешает уникальный ключ, последняя запись побеждает.
		// xmax = 0 отличает свежую вставку от перезаписи.
		var inserted bool
		row := tx.Raw(`
			INSERT INTO votes (post_id, voter_id, vote_type, created_at)
			VALUES (?, ?, ?, now())
			ON CONFLICT (post_id, voter_id) DO UPDATE SET vote_type = EXCLUDED.vote_type
			RETURNING (xmax = 0) AS inserted`, postID, voterID, voteType).Row()
		if err := row.Scan(&inserted); err != nil {
			return err
		}
		if inserted {
			outcome = domain.VoteCreated
		} else {
			outcome = domain.VoteUpdated
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *Store) GetVoteCount(ctx context.Context, postID string) (int, error) {
	var count int
	err := s.db.WithContext(ctx).
		Raw(`SELECT COALESCE(SUM(vote_type), 0) FROM votes WHERE post_id = ?`, postID).
		Scan(&count).Error
	return count, err
}

func (s *Store) GetUserVote(ctx context.Context, postID, voterID string) (int, error) {
	var vote domain.Vote
	err := s.db.WithContext(ctx).
		First(&vote, "post_id = ? AND voter_id = ?", postID, voterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return vote.VoteType, nil
}
