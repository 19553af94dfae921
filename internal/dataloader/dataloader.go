package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/UkralStul/civic-forum-service/internal/identity"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	AuthorNameByID *dataloader.Loader
}

// Middleware внедряет лоадеры в контекст запроса. Имена авторов для всех
// постов страницы разрешаются у внешнего коллаборатора ОДНИМ батч-вызовом,
// а не по одному на пост.
func Middleware(resolver identity.Resolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
			ids := make([]string, len(keys))
			for i, k := range keys {
				ids[i] = k.String()
			}

			names, err := resolver.ResolveNames(ctx, ids)
			if err != nil {
				// В случае ошибки возвращаем ее для всех ключей
				results := make([]*dataloader.Result, len(keys))
				for i := range results {
					results[i] = &dataloader.Result{Error: err}
				}
				return results
			}

			// Результаты в том же порядке, что и ключи
			results := make([]*dataloader.Result, len(keys))
			for i, id := range ids {
				results[i] = &dataloader.Result{Data: names[id]}
			}
			return results
		}

		loaders := Loaders{
			AuthorNameByID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond*1)),
		}

		ctx := context.WithValue(r.Context(), key, &loaders)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// For извлекает лоадеры из контекста; nil, если middleware не установлен.
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(key).(*Loaders)
	return loaders
}

// AuthorNames разрешает имена авторов через лоадер запроса. Все thunk'и
// запускаются до ожидания результатов, чтобы лоадер собрал один батч.
func AuthorNames(ctx context.Context, authorIDs []string) (map[string]string, error) {
	loaders := For(ctx)
	if loaders == nil {
		// Вне HTTP-запроса (тесты) имена не разрешаются
		return map[string]string{}, nil
	}

	thunks := make(map[string]dataloader.Thunk, len(authorIDs))
	for _, id := range authorIDs {
		if _, ok := thunks[id]; !ok {
			thunks[id] = loaders.AuthorNameByID.Load(ctx, dataloader.StringKey(id))
		}
	}

	names := make(map[string]string, len(thunks))
	for id, thunk := range thunks {
		v, err := thunk()
		if err != nil {
			return nil, err
		}
		if name, ok := v.(string); ok {
			names[id] = name
		}
	}
	return names, nil
}
