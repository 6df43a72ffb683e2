//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives render-ready snapshots.
// Consume runs on the engine loop and must not block.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Transport is one live connection to the remote relay.
// ReadFrame blocks until a frame arrives or the connection fails.
type Transport interface {
	ReadFrame() (event.Frame, error)
	WriteFrame(frame event.Frame) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// SessionRepository keeps the local identity for the lifetime of the session.
type SessionRepository interface {
	SaveUser(user domain.User) error
	LoadUser() (domain.User, error)
	DeleteUser() error
}
