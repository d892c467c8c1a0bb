// internal/handlers/action.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/scoreroom/internal/room"
)

type actionRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type actionResponse struct {
	Success bool `json:"success"`
	*room.Result
}

// ActionHandler is the single mutation endpoint.
//
// Request payload:
//
//	{
//	  "action": "transfer",
//	  "payload": {"roomId": "K3F9QZ", "toIdentity": "...", "amount": 20}
//	}
//
// The caller comes from the identity token; a request without one is given a
// guest identity first.
func ActionHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := ensureCaller(srv, w, r)
		if err != nil {
			srv.Logger.WithError(err).Error("failed to establish caller")
			writeRoomError(w, err)
			return
		}

		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeRequestError(w, http.StatusBadRequest, "invalid request payload")
			return
		}

		cmd, err := room.DecodeCommand(req.Action, req.Payload)
		if err != nil {
			if room.IsDomain(err) {
				writeRoomError(w, err)
				return
			}
			writeRequestError(w, http.StatusBadRequest, "invalid action payload")
			return
		}

		res, err := srv.Controller.Execute(r.Context(), cmd, caller)
		if err != nil {
			writeRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, actionResponse{Success: true, Result: res})
	}
}
