package service

import (
	"context"
	"testing"

	"github.com/UkralStul/civic-forum-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadAssembler_Reconstruction(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Дерево из семи постов, ответы создаются вперемешку по веткам
	root := createRoot(t, svc, "user-1")
	a := mustReply(t, svc, "user-2", root.ID)
	b := mustReply(t, svc, "user-3", root.ID)
	a1 := mustReply(t, svc, "user-1", a.ID)
	b1 := mustReply(t, svc, "user-2", b.ID)
	a2 := mustReply(t, svc, "user-3", a.ID)
	a11 := mustReply(t, svc, "user-2", a1.ID)

	all := []*domain.Post{root, a, b, a1, b1, a2, a11}

	tree, err := svc.GetThread(ctx, root.ID, "")
	require.NoError(t, err)
	assert.Equal(t, root.ID, tree.Post.ID)

	// Ровно один узел на пост
	nodes := map[string]*domain.ThreadNode{}
	collectNodes(tree, nodes)
	require.Len(t, nodes, len(all))
	for _, p := range all {
		require.Contains(t, nodes, p.ID)
	}

	// Дети каждого узла - в точности посты с соответствующим parentId
	expectedChildren := map[string][]string{}
	for _, p := range all {
		if p.ParentID != nil {
			expectedChildren[*p.ParentID] = append(expectedChildren[*p.ParentID], p.ID)
		}
	}
	for id, node := range nodes {
		var got []string
		for _, reply := range node.Replies {
			got = append(got, reply.Post.ID)
		}
		assert.ElementsMatch(t, expectedChildren[id], got, "children of %s", id)
	}
}

func TestThreadAssembler_ResolvesRootFromLeaf(t *testing.T) {
	svc := newTestService(t)

	root := createRoot(t, svc, "user-1")
	mid := mustReply(t, svc, "user-2", root.ID)
	leaf := mustReply(t, svc, "user-3", mid.ID)

	// Запрос треда по листу возвращает дерево от корня
	tree, err := svc.GetThread(context.Background(), leaf.ID, "")
	require.NoError(t, err)
	assert.Equal(t, root.ID, tree.Post.ID)
}

func TestThreadAssembler_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetThread(context.Background(), "non-existent-id", "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestThreadAssembler_ViewerAggregates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	root := createRoot(t, svc, "user-1")
	reply := mustReply(t, svc, "user-2", root.ID)

	_, err := svc.VoteOnPost(ctx, root.ID, "user-2", 1)
	require.NoError(t, err)
	_, err = svc.VoteOnPost(ctx, root.ID, "user-3", 1)
	require.NoError(t, err)
	_, err = svc.VoteOnPost(ctx, reply.ID, "user-3", -1)
	require.NoError(t, err)

	// Агрегаты приходят вместе с тредом, без отдельных запросов
	tree, err := svc.GetThread(ctx, root.ID, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Post.VoteScore)
	assert.Equal(t, 1, tree.Post.ViewerVote)
	assert.Equal(t, 1, tree.Post.ReplyCount)

	require.Len(t, tree.Replies, 1)
	assert.Equal(t, -1, tree.Replies[0].Post.VoteScore)
	assert.Equal(t, 0, tree.Replies[0].Post.ViewerVote)
}

func mustReply(t *testing.T, svc *PostService, authorID, parentID string) *domain.Post {
	t.Helper()
	reply, err := svc.CreatePost(context.Background(), authorID, CreatePostInput{
		Content:  "reply",
		ParentID: &parentID,
	})
	require.NoError(t, err)
	return reply
}

func collectNodes(node *domain.ThreadNode, into map[string]*domain.ThreadNode) {
	into[node.Post.ID] = node
	for _, reply := range node.Replies {
		collectNodes(reply, into)
	}
}
