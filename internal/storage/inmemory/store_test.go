package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/UkralStul/civic-forum-service/internal/domain"
	"github.com/UkralStul/civic-forum-service/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore создает хранилище и один корневой пост для тестов
func newTestStore(t *testing.T) (*Store, *domain.Post) {
	store := New()
	ctx := context.Background()
	root, err := store.CreatePost(ctx, &domain.Post{
		AuthorID: "user-1",
		Title:    "Test Thread",
		Content:  "Content",
		Category: domain.CategoryGeneral,
	})
	require.NoError(t, err)
	return store, root
}

// newReply вставляет ответ с уже вычисленными глубиной и корнем,
// как это делает сервисный слой
func newReply(t *testing.T, store *Store, parent *domain.Post, authorID string) *domain.Post {
	ctx := context.Background()
	rootID := parent.ID
	if parent.RootPostID != nil {
		rootID = *parent.RootPostID
	}
	reply, err := store.CreatePost(ctx, &domain.Post{
		AuthorID:    authorID,
		Content:     "reply",
		Category:    domain.CategoryGeneral,
		ParentID:    &parent.ID,
		RootPostID:  &rootID,
		ThreadDepth: parent.ThreadDepth + 1,
	})
	require.NoError(t, err)
	return reply
}

func TestStore_CreateAndGetPost(t *testing.T) {
	store, root := newTestStore(t)
	ctx := context.Background()

	retrieved, err := store.GetPostByID(ctx, root.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, root.Title, retrieved.Title)

	// Отсутствующая строка - nil без ошибки
	missing, err := store.GetPostByID(ctx, "non-existent-id")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_UpdatePost(t *testing.T) {
	store, root := newTestStore(t)
	ctx := context.Background()

	title := "Updated"
	locked := true
	updated, err := store.UpdatePost(ctx, root.ID, storage.PostUpdate{Title: &title, IsLocked: &locked})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Updated", updated.Title)
	assert.True(t, updated.IsLocked)
	assert.Equal(t, root.Content, updated.Content)

	missing, err := store.UpdatePost(ctx, "non-existent-id", storage.PostUpdate{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_ListThread_Ordering(t *testing.T) {
	store, root := newTestStore(t)
	ctx := context.Background()

	replyA := newReply(t, store, root, "user-2")
	replyB := newReply(t, store, root, "user-3")
	nested := newReply(t, store, replyA, "user-1")

	flat, err := store.ListThread(ctx, root.ID, "")
	require.NoError(t, err)
	require.Len(t, flat, 4)

	// Глубина не убывает, значит родитель всегда раньше ребенка
	assert.Equal(t, root.ID, flat[0].ID)
	for i := 1; i < len(flat); i++ {
		assert.GreaterOrEqual(t, flat[i].ThreadDepth, flat[i-1].ThreadDepth)
	}
	assert.Equal(t, nested.ID, flat[3].ID)
	_ = replyB

	// Несуществующий корень - пустой список без ошибки
	empty, err := store.ListThread(ctx, "non-existent-id", "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_DeletePost_RemovesSubtree(t *testing.T) {
	store, root := newTestStore(t)
	ctx := context.Background()

	reply := newReply(t, store, root, "user-2")
	nested := newReply(t, store, reply, "user-3")
	sibling := newReply(t, store, root, "user-3")

	_, err := store.UpsertVote(ctx, nested.ID, "user-1", 1)
	require.NoError(t, err)

	// Удаление ответа забирает его поддерево и голоса, но не соседей
	require.NoError(t, store.DeletePost(ctx, reply.ID))

	gone, err := store.GetPostByID(ctx, reply.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	gone, err = store.GetPostByID(ctx, nested.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	left, err := store.GetPostByID(ctx, sibling.ID)
	require.NoError(t, err)
	assert.NotNil(t, left)

	count, err := store.GetVoteCount(ctx, nested.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	flat, err := store.ListThread(ctx, root.ID, "")
	require.NoError(t, err)
	assert.Len(t, flat, 2)
}

func TestStore_UpsertVote_Toggle(t *testing.T) {
	store, root := newTestStore(t)
	ctx := context.Background()

	outcome, err := store.UpsertVote(ctx, root.ID, "user-2", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteCreated, outcome)

	// Повтор того же значения снимает голос
	outcome, err = store.UpsertVote(ctx, root.ID, "user-2", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteRemoved, outcome)

	vote, err := store.GetUserVote(ctx, root.ID, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 0, vote)

	// Другое значение перезаписывает
	_, err = store.UpsertVote(ctx, root.ID, "user-2", 1)
	require.NoError(t, err)
	outcome, err = store.UpsertVote(ctx, root.ID, "user-2", -1)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteUpdated, outcome)

	vote, err = store.GetUserVote(ctx, root.ID, "user-2")
	require.NoError(t, err)
	assert.Equal(t, -1, vote)
}

func TestStore_GetVoteCount(t *testing.T) {
	store, root := newTestStore(t)
	ctx := context.Background()

	voters := []struct {
		id    string
		value int
	}{
		{"user-2", 1},
		{"user-3", 1},
		{"user-4", -1},
	}
	for _, v := range voters {
		_, err := store.UpsertVote(ctx, root.ID, v.id, v.value)
		require.NoError(t, err)
	}

	count, err := store.GetVoteCount(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Пост без голосов - ноль, а не ошибка
	count, err = store.GetVoteCount(ctx, "non-existent-id")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_ListPosts_Filters(t *testing.T) {
	store, root := newTestStore(t)
	ctx := context.Background()

	other, err := store.CreatePost(ctx, &domain.Post{
		AuthorID: "user-2",
		Title:    "Bounty",
		Content:  "Content",
		Category: domain.CategoryBounty,
	})
	require.NoError(t, err)
	reply := newReply(t, store, root, "user-2")

	// Без фильтра по родителю возвращаются только корни
	roots, err := store.ListPosts(ctx, "", storage.ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, roots, 2)

	bounty := domain.CategoryBounty
	filtered, err := store.ListPosts(ctx, "", storage.ListFilter{Category: &bounty, Limit: 10})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, other.ID, filtered[0].ID)

	children, err := store.ListPosts(ctx, "", storage.ListFilter{ParentID: &root.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, reply.ID, children[0].ID)

	author := "user-2"
	byAuthor, err := store.ListPosts(ctx, "", storage.ListFilter{AuthorID: &author, Limit: 10})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, other.ID, byAuthor[0].ID)
}

func TestStore_ListPosts_PinnedFirst(t *testing.T) {
	store, root := newTestStore(t)
	ctx := context.Background()

	time.Sleep(time.Millisecond)
	newer, err := store.CreatePost(ctx, &domain.Post{
		AuthorID: "user-2",
		Title:    "Newer",
		Content:  "Content",
		Category: domain.CategoryGeneral,
	})
	require.NoError(t, err)

	// Старый, но закрепленный пост поднимается наверх
	pinned := true
	_, err = store.UpdatePost(ctx, root.ID, storage.PostUpdate{IsPinned: &pinned})
	require.NoError(t, err)

	posts, err := store.ListPosts(ctx, "", storage.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, root.ID, posts[0].ID)
	assert.Equal(t, newer.ID, posts[1].ID)
}

func TestStore_ListPosts_Aggregates(t *testing.T) {
	store, root := newTestStore(t)
	ctx := context.Background()

	newReply(t, store, root, "user-2")
	newReply(t, store, root, "user-3")
	_, err := store.UpsertVote(ctx, root.ID, "user-2", 1)
	require.NoError(t, err)
	_, err = store.UpsertVote(ctx, root.ID, "user-3", -1)
	require.NoError(t, err)

	posts, err := store.ListPosts(ctx, "user-2", storage.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, 0, posts[0].VoteScore)
	assert.Equal(t, 1, posts[0].ViewerVote)
	assert.Equal(t, 2, posts[0].ReplyCount)
}

func TestStore_TouchActivity(t *testing.T) {
	store, root := newTestStore(t)
	ctx := context.Background()

	at := time.Now().UTC().Add(time.Hour)
	require.NoError(t, store.TouchActivity(ctx, root.ID, at))

	got, err := store.GetPostByID(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, got.LastActivityAt.Equal(at))
}
