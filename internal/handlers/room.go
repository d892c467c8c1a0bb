// internal/handlers/room.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scoreroom/internal/auth"
	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/room"
	"github.com/jason-s-yu/scoreroom/internal/store"
)

// defaultAuditLimit caps GET /room/{id}/audit without ?limit.
const defaultAuditLimit = 100

type roomView struct {
	Success   bool         `json:"success"`
	Room      *models.Room `json:"room"`
	CanFollow bool         `json:"canFollow"`
}

// RoomHandler returns the committed room, settled rooms included.
func RoomHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, err := srv.Controller.Engine().GetRoom(r.Context(), r.PathValue("id"))
		if err != nil {
			writeRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roomView{Success: true, Room: rm, CanFollow: rm.CanFollow()})
	}
}

type auditView struct {
	Success bool                `json:"success"`
	Entries []models.AuditEntry `json:"entries"`
}

// AuditHandler lists the room's audit entries, newest first.
func AuditHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultAuditLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeRequestError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}
		entries, err := srv.Audit.ListAudit(r.Context(), r.PathValue("id"), limit)
		if err != nil {
			srv.Logger.WithError(err).WithField("room_id", r.PathValue("id")).Error("audit read failed")
			writeRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, auditView{Success: true, Entries: entries})
	}
}

// historyView is a snapshot with its derived winners and losers.
type historyView struct {
	models.HistorySnapshot
	Winners []models.Player `json:"winners"`
	Losers  []models.Player `json:"losers"`
}

func newHistoryView(h models.HistorySnapshot, viewer string) historyView {
	return historyView{HistorySnapshot: h, Winners: h.Winners(viewer), Losers: h.Losers(viewer)}
}

type historyListView struct {
	Success bool          `json:"success"`
	History []historyView `json:"history"`
}

// ListHistoryHandler returns the caller's settled rooms, most recent first.
func ListHistoryHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := auth.CallerFromRequest(r)
		if err != nil {
			writeRequestError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		list, err := srv.History.ListHistory(r.Context(), caller)
		if err != nil {
			srv.Logger.WithError(err).WithField("caller", caller).Error("history read failed")
			writeRoomError(w, err)
			return
		}
		out := make([]historyView, 0, len(list))
		for _, h := range list {
			out = append(out, newHistoryView(h, caller))
		}
		writeJSON(w, http.StatusOK, historyListView{Success: true, History: out})
	}
}

type historyDetail struct {
	Success bool `json:"success"`
	historyView
}

// HistoryHandler returns one snapshot. Only players of that room may read it.
func HistoryHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := auth.CallerFromRequest(r)
		if err != nil {
			writeRequestError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeRequestError(w, http.StatusBadRequest, "invalid history id")
			return
		}
		h, err := srv.History.GetHistory(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !h.Includes(caller)) {
			writeRoomError(w, room.ErrRoomNotFound)
			return
		}
		if err != nil {
			srv.Logger.WithError(err).Error("history read failed")
			writeRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, historyDetail{Success: true, historyView: newHistoryView(*h, caller)})
	}
}
