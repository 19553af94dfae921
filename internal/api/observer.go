package api

import (
	"sync"

	"github.com/google/uuid"

	"github.com/UkralStul/civic-forum-service/internal/domain"
)

// ThreadObserver хранит каналы подписчиков на новые ответы в тредах.
//
//	map[rootPostID] map[subscriberID] channel
type ThreadObserver struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan *domain.Post
}

// NewThreadObserver - конструктор наблюдателя.
func NewThreadObserver() *ThreadObserver {
	return &ThreadObserver{
		subs: make(map[string]map[string]chan *domain.Post),
	}
}

// Subscribe регистрирует подписчика на тред и возвращает канал новых
// ответов вместе с функцией отписки.
func (o *ThreadObserver) Subscribe(rootID string) (<-chan *domain.Post, func()) {
	ch := make(chan *domain.Post, 1)
	subID := uuid.NewString()

	o.mu.Lock()
	if o.subs[rootID] == nil {
		o.subs[rootID] = make(map[string]chan *domain.Post)
	}
	o.subs[rootID][subID] = ch
	o.mu.Unlock()

	cancel := func() {
		o.mu.Lock()
		if threadSubs, ok := o.subs[rootID]; ok {
			delete(threadSubs, subID)
			if len(threadSubs) == 0 {
				delete(o.subs, rootID)
			}
		}
		o.mu.Unlock()
	}
	return ch, cancel
}

// Publish асинхронно рассылает новый ответ подписчикам треда.
func (o *ThreadObserver) Publish(rootID string, post *domain.Post) {
	o.mu.RLock()
	_, ok := o.subs[rootID]
	o.mu.RUnlock()
	if !ok {
		return
	}

	// В горутине, чтобы не блокировать создание поста
	go func(p *domain.Post) {
		o.mu.RLock()
		defer o.mu.RUnlock()
		for _, ch := range o.subs[rootID] {
			select {
			case ch <- p:
			default:
				// Клиент не успевает читать - событие пропускается
			}
		}
	}(post)
}
