// Package bridge connects a protocol driver to the host's event loop.
//
// The driver itself never blocks; the bridge is the single place where the
// host awaits a session outcome. It pumps inbound transport events into the
// driver, outbound driver messages into the transport, clocks round
// deadlines, and resolves once the driver reaches a terminal state.
package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/mpc-sdk/mpc-driver/pkg/protocol"
	"github.com/mpc-sdk/mpc-driver/pkg/session"
)

// tickInterval is how often driver deadlines are checked while waiting.
const tickInterval = 250 * time.Millisecond

// Sender delivers sealed outbound messages. It is the transport facet the
// bridge needs; session.Transport satisfies it.
type Sender interface {
	Send(ctx context.Context, msg *protocol.Message) error
}

// WaitForDriver runs the driver to completion: inbound message events are
// fed into it, outbound messages are handed to the sender, and the call
// returns the artifact or the structured abort reason. Cancelling the
// context stops the driver; no partial artifact is ever returned.
func WaitForDriver(ctx context.Context, sender Sender, events <-chan session.Event, h protocol.Handler) (interface{}, error) {
	if sender == nil || h == nil {
		return nil, errors.New("bridge: sender and handler are required")
	}
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	outbound := h.Listen()
	for {
		select {
		case <-ctx.Done():
			h.Stop()
			drainOutbound(h)
			return h.Result()

		case now := <-ticker.C:
			h.Tick(now)

		case msg, ok := <-outbound:
			if !ok {
				// terminal: the driver closed its outbound channel
				return h.Result()
			}
			if err := sender.Send(ctx, msg); err != nil {
				h.Stop()
				drainOutbound(h)
				return nil, err
			}

		case ev, ok := <-events:
			if !ok {
				h.Stop()
				drainOutbound(h)
				return h.Result()
			}
			if m, isMsg := ev.(session.MessageReceived); isMsg {
				h.Accept(m.Message)
			}
		}
	}
}

// WaitForSessionFinish blocks until the transport reports the session with
// the given ID as finished, or the context is cancelled.
func WaitForSessionFinish(ctx context.Context, events <-chan session.Event, sessionID []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errors.New("bridge: event stream closed")
			}
			if f, isFinished := ev.(session.Finished); isFinished {
				if sessionID == nil || string(f.ID) == string(sessionID) {
					return nil
				}
			}
		}
	}
}

// WaitForClose blocks until the transport connection closes, or the context
// is cancelled.
func WaitForClose(ctx context.Context, events <-chan session.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if _, closed := ev.(session.Closed); closed {
				return nil
			}
		}
	}
}

// drainOutbound consumes whatever the driver still emitted while stopping,
// so a final abort notification does not linger in the channel.
func drainOutbound(h protocol.Handler) {
	for range h.Listen() {
	}
}
