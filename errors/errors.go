package errors

import "fmt"

var (
	ErrWorkerPanic          = fmt.Errorf("worker panic")
	ErrTransportUnavailable = fmt.Errorf("transport unavailable")
	ErrNotConnected         = fmt.Errorf("event bus is not connected")
	ErrInvalidPayload       = fmt.Errorf("invalid payload")
	ErrUnknownEvent         = fmt.Errorf("unknown event")
	ErrNoSession            = fmt.Errorf("no session stored")
	ErrEmptyUsername        = fmt.Errorf("username must not be empty")
	ErrNotLoggedIn          = fmt.Errorf("no local user")
	ErrEngineStopped        = fmt.Errorf("engine stopped")
)
