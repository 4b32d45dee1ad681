package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

type RoomSvc interface {
	Create(ctx context.Context, id domain.RoomID, patch domain.StatePatch) (domain.Room, bool, error)
	Get(ctx context.Context, id domain.RoomID) (domain.Room, error)
	Ping(ctx context.Context) error
}

type ChatSvc interface {
	Page(ctx context.Context, roomID domain.RoomID, after string, limit int) ([]domain.ChatEntry, string, error)
}

type Presence interface {
	ListMembers(roomID domain.RoomID) []domain.Member
}

type Handler struct {
	roomSvc  RoomSvc
	chatSvc  ChatSvc
	presence Presence
}

func NewHandler(room RoomSvc, chat ChatSvc, presence Presence) *Handler {
	return &Handler{
		roomSvc:  room,
		chatSvc:  chat,
		presence: presence,
	}
}

type CreateRoomRequest struct {
	ID    domain.RoomID     `json:"id"`
	State domain.StatePatch `json:"state"`
}

type ChatPage struct {
	Items      []domain.ChatEntry `json:"items"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

// POST /rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid json", domain.CodeValidation)
			return
		}
	}

	room, created, err := h.roomSvc.Create(r.Context(), req.ID, req.State)
	if err != nil {
		httputil.FromError(r.Context(), w, err)
		return
	}
	if created {
		httputil.Created(w, room)
		return
	}
	httputil.OK(w, room)
}

// GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	httputil.OK(w, room)
}

// GET /rooms/{id}/chat?cursor=&limit=
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			httputil.Error(w, http.StatusBadRequest, "invalid limit", domain.CodeValidation)
			return
		}
		limit = n
	}

	items, next, err := h.chatSvc.Page(r.Context(), room.ID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		httputil.FromError(r.Context(), w, err)
		return
	}
	if items == nil {
		items = []domain.ChatEntry{}
	}
	httputil.OK(w, ChatPage{Items: items, NextCursor: next})
}

// GET /rooms/{id}/members
func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	members := h.presence.ListMembers(room.ID)
	if members == nil {
		members = []domain.Member{}
	}
	httputil.OK(w, members)
}

// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.roomSvc.Ping(r.Context()); err != nil {
		httputil.FromError(r.Context(), w, domain.Persistence("ping", err))
		return
	}
	httputil.OK(w, map[string]string{"status": "ok"})
}

func (h *Handler) room(w http.ResponseWriter, r *http.Request) (domain.Room, bool) {
	id := domain.RoomID(chi.URLParam(r, "id"))
	if err := id.Validate(); err != nil {
		httputil.FromError(r.Context(), w, err)
		return domain.Room{}, false
	}
	room, err := h.roomSvc.Get(r.Context(), id)
	if err != nil {
		httputil.FromError(r.Context(), w, err)
		return domain.Room{}, false
	}
	return room, true
}
