// internal/handlers/server.go

// Package handlers exposes the room controller over HTTP and WebSocket.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/room"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/sirupsen/logrus"
)

// Feed publishes committed room events and lets websocket clients follow a
// room. Both the in-process hub and the Redis notifier satisfy it.
type Feed interface {
	room.Notifier
	Subscribe(ctx context.Context, roomID string) (<-chan models.RoomEvent, func(), error)
}

// RoomServer holds what the handlers need.
type RoomServer struct {
	Controller *room.Controller
	History    store.HistoryStore
	Audit      store.AuditLog
	Users      store.UserStore
	Feed       Feed
	Logger     *logrus.Logger

	// OriginPatterns is passed to websocket.Accept.
	OriginPatterns []string
}

// Routes registers every endpoint on a new mux.
func (srv *RoomServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// room endpoints
	mux.HandleFunc("POST /room/action", ActionHandler(srv))
	mux.HandleFunc("GET /room/{id}", RoomHandler(srv))
	mux.HandleFunc("GET /room/{id}/audit", AuditHandler(srv))
	mux.HandleFunc("GET /room/{id}/ws", RoomWSHandler(srv))

	// history endpoints
	mux.HandleFunc("GET /history", ListHistoryHandler(srv))
	mux.HandleFunc("GET /history/{id}", HistoryHandler(srv))

	// user endpoints
	mux.HandleFunc("POST /user/create", CreateUserHandler(srv))
	mux.HandleFunc("POST /user/login", LoginHandler(srv))
	mux.HandleFunc("PUT /user/profile", UpdateProfileHandler(srv))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// failure is the body of every unsuccessful room response.
type failure struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Msg     string `json:"msg"`
}

func fail(err error) failure {
	return failure{Success: false, Code: room.Code(err), Msg: room.Message(err)}
}

// writeRoomError answers with the error's user-visible message. Business-rule
// failures are a normal outcome and use 200; anything else is a 500.
func writeRoomError(w http.ResponseWriter, err error) {
	status := http.StatusOK
	if !room.IsDomain(err) {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, fail(err))
}

func writeRequestError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, failure{Success: false, Code: "BadRequest", Msg: msg})
}
