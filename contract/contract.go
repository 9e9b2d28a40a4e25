//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"educhat/domain/chat"
	"educhat/domain/event"
)

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker lifecycle
// events, avoiding the need for manual naming in the Worker interface.
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

// EventSink is one live connection's outbound queue.
// Send must never block: it reports false when the sink's buffer is full,
// letting the hub drop the slow connection instead of stalling fan-out.
type EventSink interface {
	Send(payload []byte) bool
	Close()
}

// Broadcaster is the hub surface the services emit through. Every call is a
// fire-and-forget command to the hub's single event loop.
type Broadcaster interface {
	BroadcastRoom(room chat.RoomID, e event.ServerEvent, excludeConn string)
	BroadcastAll(e event.ServerEvent)
	EmitConn(connID string, e event.ServerEvent)
	EmitUser(userID string, e event.ServerEvent)
}

// Membership is the group-membership collaborator consulted when a
// connection joins rooms. Implementations are authoritative; the hub never
// caches membership across reconnects.
type Membership interface {
	GroupsForUser(ctx context.Context, userID string) ([]string, error)
	IsMember(ctx context.Context, userID, groupID string) (bool, error)
}

// BotClient is the AI collaborator behind the bot-echo path.
type BotClient interface {
	Reply(ctx context.Context, message, language string) (string, error)
}

// Translator converts text to a target ISO 639-1 language.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}
