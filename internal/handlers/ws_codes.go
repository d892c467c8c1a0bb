// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes for the room feed.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // client did not speak the room subprotocol
	RoomDissolvedClose  websocket.StatusCode = 3001 // the room was dismissed or its last player left
)

// roomSubprotocol is the only websocket subprotocol accepted.
const roomSubprotocol = "room"
