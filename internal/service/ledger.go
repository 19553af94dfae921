package service

import (
	"context"
	"fmt"

	"github.com/UkralStul/civic-forum-service/internal/domain"
	"github.com/UkralStul/civic-forum-service/internal/storage"
)

// VoteLedger реализует протокол переключения голоса поверх VoteStore.
// Вся атомарность на ключе (post, voter) обеспечивается хранилищем;
// здесь только валидация значения и интерпретация исхода.
type VoteLedger struct {
	votes storage.VoteStore
}

// NewVoteLedger создает новый реестр голосов.
func NewVoteLedger(votes storage.VoteStore) *VoteLedger {
	return &VoteLedger{votes: votes}
}

// CastVote применяет идемпотентное переключение: нет голоса - создать,
// тот же голос - снять, другой - перезаписать.
func (l *VoteLedger) CastVote(ctx context.Context, postID, voterID string, voteType int) (*domain.VoteResult, error) {
	if voteType != 1 && voteType != -1 {
		return nil, fmt.Errorf("%w: vote value must be +1 or -1", domain.ErrValidation)
	}

	outcome, err := l.votes.UpsertVote(ctx, postID, voterID, voteType)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert vote: %w", err)
	}

	value := voteType
	if outcome == domain.VoteRemoved {
		value = 0
	}
	return &domain.VoteResult{Outcome: outcome, Value: value}, nil
}

// GetVoteCount возвращает знаковую сумму голосов поста.
func (l *VoteLedger) GetVoteCount(ctx context.Context, postID string) (int, error) {
	return l.votes.GetVoteCount(ctx, postID)
}

// GetUserVote возвращает текущий голос пользователя или 0.
func (l *VoteLedger) GetUserVote(ctx context.Context, postID, voterID string) (int, error) {
	return l.votes.GetUserVote(ctx, postID, voterID)
}
