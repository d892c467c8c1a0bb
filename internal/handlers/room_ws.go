// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/scoreroom/internal/auth"
	"github.com/jason-s-yu/scoreroom/internal/middleware"
	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/room"
	"github.com/sirupsen/logrus"
)

const wsWriteTimeout = 5 * time.Second

// Feed message types sent to clients besides the room events themselves.
const (
	msgRoomState = "room_state"
	msgResult    = "result"
)

type wsState struct {
	Type      string       `json:"type"`
	Room      *models.Room `json:"room"`
	CanFollow bool         `json:"canFollow"`
}

// wsAction is a client message. RequestID is echoed in the reply.
type wsAction struct {
	RequestID string          `json:"requestId,omitempty"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
}

type wsResult struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Success   bool   `json:"success"`
	Code      string `json:"code,omitempty"`
	Msg       string `json:"msg,omitempty"`
	*room.Result
}

// RoomWSHandler streams a room's committed events and accepts actions on the
// same socket. The first message is the current room state.
func RoomWSHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("id")
		caller, err := auth.CallerFromRequest(r)
		if err != nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// subscribe before reading so no commit falls between the state
		// frame and the first streamed event
		events, stop, err := srv.Feed.Subscribe(ctx, roomID)
		if err != nil {
			srv.Logger.WithError(err).WithField("room_id", roomID).Error("feed subscribe failed")
			http.Error(w, "could not follow room", http.StatusInternalServerError)
			return
		}
		defer stop()

		current, err := srv.Controller.Engine().GetRoom(ctx, roomID)
		if err != nil {
			if errors.Is(err, room.ErrRoomNotFound) {
				http.Error(w, room.Message(err), http.StatusNotFound)
				return
			}
			srv.Logger.WithError(err).WithField("room_id", roomID).Error("room read failed")
			http.Error(w, room.Message(err), http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{roomSubprotocol},
			OriginPatterns: srv.OriginPatterns,
		})
		if err != nil {
			srv.Logger.WithError(err).Warn("websocket accept error")
			return
		}
		defer c.CloseNow()
		if c.Subprotocol() != roomSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the room subprotocol")
			return
		}
		middleware.LogWebSocketConnect(srv.Logger, r.RemoteAddr, r.URL.Path, caller)

		if err := writeWS(ctx, c, wsState{Type: msgRoomState, Room: current, CanFollow: current.CanFollow()}); err != nil {
			middleware.LogWebSocketDisconnect(srv.Logger, r.RemoteAddr, r.URL.Path, err)
			return
		}

		go func() {
			defer cancel()
			for ev := range events {
				if err := writeWS(ctx, c, ev); err != nil {
					return
				}
				if ev.Type == models.EventRoomDissolved {
					c.Close(RoomDissolvedClose, "room dissolved")
					return
				}
			}
		}()

		err = readActions(ctx, c, srv, caller)
		middleware.LogWebSocketDisconnect(srv.Logger, r.RemoteAddr, r.URL.Path, err)
	}
}

// readActions executes client actions until the socket closes. A normal close
// returns nil. Frames that are not valid JSON get an error reply and the
// socket stays open.
func readActions(ctx context.Context, c *websocket.Conn, srv *RoomServer, caller string) error {
	log := srv.Logger.WithField("caller", caller)
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway, RoomDissolvedClose:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			log.Debugf("ignoring non-text message type %d", typ)
			continue
		}

		var msg wsAction
		if err := json.Unmarshal(data, &msg); err != nil {
			log.WithError(err).Debug("invalid json from client")
			if werr := writeWS(ctx, c, wsResult{Type: msgResult, Code: "BadRequest", Msg: "invalid JSON format"}); werr != nil {
				return werr
			}
			continue
		}

		reply := wsResult{Type: msgResult, RequestID: msg.RequestID}
		cmd, err := room.DecodeCommand(msg.Action, msg.Payload)
		if err == nil {
			reply.Result, err = srv.Controller.Execute(ctx, cmd, caller)
		}
		if err != nil {
			reply.Code, reply.Msg = room.Code(err), room.Message(err)
		} else {
			reply.Success = true
		}
		if err := writeWS(ctx, c, reply); err != nil {
			return err
		}
	}
}

func writeWS(ctx context.Context, c *websocket.Conn, v any) error {
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	err := wsjson.Write(wctx, c, v)
	if err != nil && websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Debug("websocket write failed")
	}
	return err
}
