package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/UkralStul/civic-forum-service/internal/dataloader"
	"github.com/UkralStul/civic-forum-service/internal/domain"
	"github.com/UkralStul/civic-forum-service/internal/identity"
	"github.com/UkralStul/civic-forum-service/internal/service"
	"github.com/UkralStul/civic-forum-service/internal/storage"
)

// Handler - тонкий HTTP-слой над PostService: декодирование, валидация,
// маппинг видов ошибок в статусы. Вся доменная логика живет в сервисе.
type Handler struct {
	svc      *service.PostService
	observer *ThreadObserver
	validate *validator.Validate
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler создает HTTP-обработчики сервиса.
func NewHandler(svc *service.PostService, observer *ThreadObserver, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		svc:      svc,
		observer: observer,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// === Request / Response DTOs ===

type createPostRequest struct {
	Title     string  `json:"title" validate:"max=255"`
	Content   string  `json:"content" validate:"required,max=10000"`
	Category  string  `json:"category" validate:"omitempty,oneof=general announcement project bounty meeting document"`
	ParentID  *string `json:"parentId,omitempty" validate:"omitempty,uuid"`
	ProjectID *string `json:"projectId,omitempty"`
}

type updatePostRequest struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,max=255"`
	Content  *string `json:"content,omitempty" validate:"omitempty,max=10000"`
	Category *string `json:"category,omitempty" validate:"omitempty,oneof=general announcement project bounty meeting document"`
}

type voteRequest struct {
	Value int `json:"value" validate:"required,oneof=-1 1"`
}

type lockRequest struct {
	Locked bool `json:"locked"`
}

type pinRequest struct {
	Pinned bool `json:"pinned"`
}

// postView - пост с отображаемым именем автора, разрешенным батчем.
type postView struct {
	*domain.Post
	AuthorName string `json:"authorName,omitempty"`
}

// threadNodeView - узел дерева треда для ответа.
type threadNodeView struct {
	postView
	Replies []*threadNodeView `json:"replies,omitempty"`
}

// === Post Handlers ===

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	caller := identity.FromContext(r.Context())
	var req createPostRequest
	if !h.decode(w, r, &req) {
		return
	}

	post, err := h.svc.CreatePost(r.Context(), caller.ID, service.CreatePostInput{
		Title:     req.Title,
		Content:   req.Content,
		Category:  domain.Category(req.Category),
		ParentID:  req.ParentID,
		ProjectID: req.ProjectID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	// Подписчики треда узнают о новом ответе сразу
	if post.RootPostID != nil {
		h.observer.Publish(*post.RootPostID, post)
	}

	h.respondJSON(w, http.StatusCreated, h.decoratePosts(r, post)[0])
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	caller := identity.FromContext(r.Context())
	var req updatePostRequest
	if !h.decode(w, r, &req) {
		return
	}

	var category *domain.Category
	if req.Category != nil {
		c := domain.Category(*req.Category)
		category = &c
	}

	post, err := h.svc.UpdatePost(r.Context(), chi.URLParam(r, "id"), caller.ID, service.UpdatePostInput{
		Title:    req.Title,
		Content:  req.Content,
		Category: category,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.decoratePosts(r, post)[0])
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	caller := identity.FromContext(r.Context())
	if err := h.svc.DeletePost(r.Context(), chi.URLParam(r, "id"), caller.ID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	caller := identity.FromContext(r.Context())
	var req voteRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.svc.VoteOnPost(r.Context(), chi.URLParam(r, "id"), caller.ID, req.Value)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

func (h *Handler) SetLocked(w http.ResponseWriter, r *http.Request) {
	caller := identity.FromContext(r.Context())
	var req lockRequest
	if !h.decode(w, r, &req) {
		return
	}

	post, err := h.svc.SetLocked(r.Context(), chi.URLParam(r, "id"), caller.ID, req.Locked)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.decoratePosts(r, post)[0])
}

func (h *Handler) SetPinned(w http.ResponseWriter, r *http.Request) {
	caller := identity.FromContext(r.Context())
	var req pinRequest
	if !h.decode(w, r, &req) {
		return
	}

	post, err := h.svc.SetPinned(r.Context(), chi.URLParam(r, "id"), caller.ID, req.Pinned)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.decoratePosts(r, post)[0])
}

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.ListFilter{}
	if v := q.Get("category"); v != "" {
		c := domain.Category(v)
		filter.Category = &c
	}
	if v := q.Get("author_id"); v != "" {
		filter.AuthorID = &v
	}
	if v := q.Get("parent_id"); v != "" {
		filter.ParentID = &v
	}
	if v := q.Get("project_id"); v != "" {
		filter.ProjectID = &v
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	posts, err := h.svc.ListPosts(r.Context(), h.viewerID(r), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  h.decoratePosts(r, posts...),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.GetThread(r.Context(), chi.URLParam(r, "id"), h.viewerID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	// Один батч-вызов на имена всех авторов треда
	var authorIDs []string
	collectAuthors(tree, &authorIDs)
	names, err := dataloader.AuthorNames(r.Context(), authorIDs)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, buildThreadView(tree, names))
}

// SubscribeThread переключает соединение на websocket и транслирует
// новые ответы треда до отключения клиента.
func (h *Handler) SubscribeThread(w http.ResponseWriter, r *http.Request) {
	// Заодно проверяем, что тред существует, и находим его корень
	tree, err := h.svc.GetThread(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		h.respondError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade сам пишет ответ с ошибкой
	}
	defer conn.Close()

	replies, cancel := h.observer.Subscribe(tree.Post.ID)
	defer cancel()

	// Читатель нужен только чтобы заметить закрытие соединения
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(10 * time.Second)
	defer ping.Stop()

	for {
		select {
		case post := <-replies:
			if err := conn.WriteJSON(post); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// === Helpers ===

// viewerID возвращает идентификатор вызывающего или "" для анонимов.
func (h *Handler) viewerID(r *http.Request) string {
	if caller := identity.FromContext(r.Context()); caller != nil {
		return caller.ID
	}
	return ""
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

// decoratePosts добавляет к постам имена авторов одним батч-вызовом.
func (h *Handler) decoratePosts(r *http.Request, posts ...*domain.Post) []*postView {
	authorIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		authorIDs = append(authorIDs, p.AuthorID)
	}
	names, err := dataloader.AuthorNames(r.Context(), authorIDs)
	if err != nil {
		h.log.Warn("failed to resolve author names", zap.Error(err))
		names = map[string]string{}
	}

	views := make([]*postView, len(posts))
	for i, p := range posts {
		views[i] = &postView{Post: p, AuthorName: names[p.AuthorID]}
	}
	return views
}

func collectAuthors(node *domain.ThreadNode, ids *[]string) {
	*ids = append(*ids, node.Post.AuthorID)
	for _, reply := range node.Replies {
		collectAuthors(reply, ids)
	}
}

func buildThreadView(node *domain.ThreadNode, names map[string]string) *threadNodeView {
	view := &threadNodeView{
		postView: postView{Post: node.Post, AuthorName: names[node.Post.AuthorID]},
	}
	for _, reply := range node.Replies {
		view.Replies = append(view.Replies, buildThreadView(reply, names))
	}
	return view
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Warn("failed to encode response", zap.Error(err))
	}
}

// respondError превращает вид ошибки в HTTP-статус: все виды из домена
// восстановимы и уходят как 4xx, остальное - 500.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	default:
		h.log.Error("internal error", zap.Error(err))
	}
	h.respondJSON(w, status, map[string]string{"error": err.Error()})
}
