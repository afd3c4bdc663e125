// Package wsrealtime is a reference realtime subscriber built on
// github.com/coder/websocket (present in the teacher's dependency graph as a
// config toggle but never wired to an actual connection there). It
// implements only remote.Client's Subscribe method, over a websocket
// carrying a JSON envelope {action, record} per message, so a production
// remote.Client can delegate Subscribe to it without touching the sync
// core, which depends only on the remote.Connectivity / remote.Client
// interfaces.
package wsrealtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/otterway/pbsync/internal/remote"
)

// envelope is the wire shape of one realtime message.
type envelope struct {
	Action remote.Action  `json:"action"`
	Record map[string]any `json:"record"`
}

type subscribeFrame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// Subscriber connects to a single realtime endpoint and dials a fresh
// connection per Subscribe call, matching remote.Client.Subscribe's
// per-topic unsubscribe contract.
type Subscriber struct {
	url    string
	logger *slog.Logger
}

// New returns a Subscriber that dials url (ws:// or wss://) on each Subscribe
// call.
func New(url string, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}

	return &Subscriber{url: url, logger: logger}
}

// Subscribe opens a dedicated websocket connection scoped to topic, sends a
// subscribe frame, and invokes cb for every decoded event until ctx is
// canceled, the connection fails, or the returned unsubscribe func runs.
func (s *Subscriber) Subscribe(ctx context.Context, topic string, cb func(remote.Event)) (func(), error) {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("pbsync: wsrealtime: dialing %s: %w", s.url, err)
	}

	if err := wsjson.Write(ctx, conn, subscribeFrame{Action: "subscribe", Topic: topic}); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe write failed")

		return nil, fmt.Errorf("pbsync: wsrealtime: sending subscribe frame: %w", err)
	}

	closed := make(chan struct{})

	unsubscribe := func() {
		select {
		case <-closed:
			return
		default:
			close(closed)
		}

		conn.Close(websocket.StatusNormalClosure, "unsubscribed")
	}

	go s.readLoop(ctx, conn, topic, cb, closed)

	return unsubscribe, nil
}

func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn, topic string, cb func(remote.Event), closed chan struct{}) {
	defer conn.Close(websocket.StatusNormalClosure, "read loop exited")

	for {
		var env envelope

		if err := wsjson.Read(ctx, conn, &env); err != nil {
			select {
			case <-closed:
				return
			case <-ctx.Done():
				return
			default:
			}

			s.logger.Warn("wsrealtime: read failed, stopping subscription",
				slog.String("topic", topic), slog.String("error", err.Error()))

			return
		}

		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		default:
		}

		cb(remote.Event{Action: env.Action, Record: env.Record})
	}
}
