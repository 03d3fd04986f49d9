// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room handler.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	ServerShutdownError = 3001 // The server is stopping.
)

// Error codes for malformed client messages, sent in an Error event.
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeUnknownAction = "UNKNOWN_ACTION"
)
