package game

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrPlayerNotFound  = errors.New("player not found in room")
	ErrInvalidItemType = errors.New("invalid item type")
	ErrInvalidState    = errors.New("action not allowed in the current room state")
	ErrNoActiveOrder   = errors.New("no active order")
	ErrInvalidToken    = errors.New("invalid rejoin token")
)

// Wire codes carried by Error events.
const (
	CodeRoomNotFound    = "ROOM_NOT_FOUND"
	CodePlayerNotFound  = "PLAYER_NOT_FOUND"
	CodeInvalidItemType = "INVALID_ITEM_TYPE"
	CodeInvalidState    = "INVALID_STATE"
	CodeNoActiveOrder   = "NO_ACTIVE_ORDER"
	CodeInvalidToken    = "INVALID_TOKEN"
	CodeInternal        = "INTERNAL_ERROR"
)

// ErrorCode maps an error returned by this package to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, ErrPlayerNotFound):
		return CodePlayerNotFound
	case errors.Is(err, ErrInvalidItemType):
		return CodeInvalidItemType
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrNoActiveOrder):
		return CodeNoActiveOrder
	case errors.Is(err, ErrInvalidToken):
		return CodeInvalidToken
	}
	return CodeInternal
}
