package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/hash"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
)

// Handler is the surface a host uses to drive a session.
//
// All methods are non-blocking: feeding a message or polling returns
// immediately with updated state, which is what a single-threaded cooperative
// host requires. The channel returned by Listen carries outbound messages and
// is closed when the session reaches a terminal state.
type Handler interface {
	// Result returns the artifact once the session completed, or the abort
	// reason once it aborted.
	Result() (interface{}, error)
	// Listen returns the channel of outbound messages that must be delivered
	// to the other parties.
	Listen() <-chan *Message
	// Stop cancels the session, forcing Aborted(Cancelled) unless it already
	// reached a terminal state.
	Stop()
	// CanAccept checks whether the message is destined for this session.
	CanAccept(msg *Message) bool
	// Accept feeds one inbound message to the session.
	Accept(msg *Message)
	// Tick checks the round deadline against the given time.
	Tick(now time.Time)
	// State returns a snapshot of the session state machine.
	State() State
}

// Driver sequences the rounds of one protocol execution.
//
// It owns the participant set, the current round's mailbox and the protocol
// adapter. Inbound messages are validated, buffered, and once a round's
// quorum is complete the adapter is invoked exactly once to compute the next
// round. Scheduling is cooperative: the driver performs no blocking operation
// and no internal timing; the host feeds messages and clocks Tick.
type Driver struct {
	cfg     SessionConfig
	adapter Adapter
	info    Info
	others  party.IDSlice
	ssid    []byte

	current   round.Number
	computing atomic.Bool
	done      bool
	buffer    *round.Buffer
	lookahead *round.Buffer

	out     chan *Message
	result  interface{}
	err     *Error
	strikes map[party.ID]int

	deadline time.Time

	mtx sync.Mutex
}

var _ Handler = (*Driver)(nil)

// NewDriver validates the config, derives the session identifier, and emits
// the adapter's round 0 messages. The returned driver is in
// AwaitingMessages(0).
func NewDriver(cfg SessionConfig) (*Driver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	info := cfg.Adapter.Info()

	h := hash.New()
	if cfg.SessionID != nil {
		if err := h.WriteAny(hash.BytesWithDomain{TheDomain: "Session ID", Bytes: cfg.SessionID}); err != nil {
			return nil, fmt.Errorf("protocol: %w", err)
		}
	}
	if err := h.WriteAny(
		hash.BytesWithDomain{TheDomain: "Protocol ID", Bytes: []byte(info.ProtocolID)},
		info.PartyIDs,
		info.FinalRound,
	); err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}

	d := &Driver{
		cfg:       cfg,
		adapter:   cfg.Adapter,
		info:      info,
		others:    info.PartyIDs.Remove(info.SelfID),
		ssid:      h.Sum(),
		buffer:    round.NewBuffer(0),
		lookahead: round.NewBuffer(1),
		// sized so that emitting a full session of messages never blocks
		out:     make(chan *Message, (int(info.FinalRound)+2)*len(info.PartyIDs)),
		strikes: map[party.ID]int{},
	}
	if cfg.RoundDeadline > 0 {
		d.deadline = time.Now().Add(cfg.RoundDeadline)
	}

	outbound, err := d.adapter.Begin()
	if err != nil {
		return nil, fmt.Errorf("protocol: begin round 0: %w", err)
	}
	d.emit(outbound, 0)
	return d, nil
}

// SSID returns the derived unique identifier for this execution.
func (d *Driver) SSID() []byte {
	return d.ssid
}

// Result implements Handler.
func (d *Driver) Result() (interface{}, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.result != nil {
		return d.result, nil
	}
	if d.err != nil {
		return nil, d.err
	}
	return nil, errors.New("protocol: not finished")
}

// Listen implements Handler.
func (d *Driver) Listen() <-chan *Message {
	return d.out
}

// State implements Handler.
func (d *Driver) State() State {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	switch {
	case d.result != nil:
		return State{Status: Completed, Artifact: d.result}
	case d.err != nil:
		return State{Status: Aborted, Round: d.current, Reason: d.err}
	case d.computing.Load():
		return State{Status: Computing, Round: d.current}
	default:
		return State{Status: AwaitingMessages, Round: d.current, Received: d.buffer.Received()}
	}
}

// CanAccept returns true if the message is destined for this session at its
// current point. It performs no mutation and can be called at any time.
func (d *Driver) CanAccept(msg *Message) bool {
	if msg == nil {
		return false
	}
	if d.done || d.computing.Load() {
		return false
	}
	if !msg.IsFor(d.info.SelfID) {
		return false
	}
	if !bytes.Equal(msg.SSID, d.ssid) {
		return false
	}
	if !msg.Abort && len(msg.Data) == 0 {
		return false
	}
	if msg.RoundNumber > d.info.FinalRound {
		return false
	}
	return true
}

// Accept feeds one inbound message. Messages failing validation are dropped
// without affecting the session, unless the configured misbehavior tolerance
// is exceeded. When the message completes the current round's quorum, the
// adapter is invoked before Accept returns and the resulting outbound batch
// is available on Listen.
func (d *Driver) Accept(msg *Message) {
	// an adapter callback must not feed messages while its own round is
	// being advanced; refusing here keeps such a call from deadlocking on
	// the driver's lock
	if d.computing.Load() {
		return
	}
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if !d.CanAccept(msg) {
		return
	}

	if msg.Abort {
		// an abort is only honored from an authenticated participant;
		// otherwise any transport writer could terminate the session
		if !d.others.Contains(msg.From) {
			d.strike(msg.From, &ValidationError{Kind: UnknownSender, From: msg.From, Round: msg.RoundNumber})
			return
		}
		if !msg.VerifyTag() {
			d.strike(msg.From, &ValidationError{Kind: MalformedPayload, From: msg.From, Round: msg.RoundNumber})
			return
		}
		d.abort(&Error{
			Kind:     ErrorPeerAborted,
			Culprits: []party.ID{msg.From},
			Round:    d.current,
			Err:      fmt.Errorf("peer reported: %q", msg.Data),
		})
		return
	}

	if verr := Validate(msg, d.current, d.info.FinalRound, d.others); verr != nil {
		d.strike(msg.From, verr)
		return
	}

	// one round ahead: cache, never process out of order
	if msg.RoundNumber == d.current+1 {
		if err := d.lookahead.Admit(msg.From, msg.Data); err != nil {
			d.strike(msg.From, err)
		}
		return
	}

	if err := d.adapter.ValidatePayload(msg.RoundNumber, msg.From, msg.Data); err != nil {
		d.strike(msg.From, &ValidationError{Kind: MalformedPayload, From: msg.From, Round: msg.RoundNumber})
		return
	}
	if err := d.buffer.Admit(msg.From, msg.Data); err != nil {
		// duplicate: drop, flag the sender, keep the original payload
		d.strike(msg.From, err)
		return
	}

	d.advance()
}

// advance runs the adapter for as long as complete rounds are available,
// which can be more than once when the look-ahead cache already holds the
// next round's quorum.
func (d *Driver) advance() {
	for !d.done {
		quorum := d.adapter.Quorum(d.current)
		if !d.buffer.Complete(quorum) {
			return
		}
		r := d.current
		d.computing.Store(true)
		inputs := d.buffer.Drain()
		// participants outside the round's quorum may have been admitted;
		// the adapter receives exactly one payload per quorum member
		for from := range inputs {
			if !quorum.Contains(from) {
				delete(inputs, from)
			}
		}
		step, err := d.adapter.Advance(r, inputs)
		d.computing.Store(false)

		if err != nil {
			d.abort(asAbort(err, r))
			return
		}
		if step == nil {
			d.abort(&Error{Kind: ErrorInconsistentState, Round: r, Err: errors.New("adapter returned no step")})
			return
		}
		if step.Artifact != nil {
			d.result = step.Artifact
			d.finish()
			return
		}
		if r == d.info.FinalRound {
			d.abort(&Error{Kind: ErrorInconsistentState, Round: r, Err: errors.New("adapter continued past the final round")})
			return
		}

		d.current = r + 1
		d.buffer.Reset(d.current)
		d.emit(step.Outbound, d.current)
		if d.cfg.RoundDeadline > 0 {
			d.deadline = time.Now().Add(d.cfg.RoundDeadline)
		}
		d.promoteLookahead()
	}
}

// promoteLookahead moves cached next-round messages into the fresh mailbox,
// applying the structural checks that were deferred at caching time.
func (d *Driver) promoteLookahead() {
	cached := d.lookahead.Drain()
	d.lookahead.Reset(d.current + 1)
	for _, from := range sortedSenders(cached) {
		data := cached[from]
		if err := d.adapter.ValidatePayload(d.current, from, data); err != nil {
			d.strike(from, &ValidationError{Kind: MalformedPayload, From: from, Round: d.current})
			continue
		}
		if err := d.buffer.Admit(from, data); err != nil {
			d.strike(from, err)
		}
	}
}

// strike records a dropped message against its sender. Per-message errors
// never fail the session on their own; only an exceeded tolerance does.
// Non-participants are not counted: they could not otherwise influence the
// session and must not be able to push it over the tolerance.
func (d *Driver) strike(from party.ID, cause error) {
	if d.done || !d.others.Contains(from) {
		return
	}
	d.strikes[from]++
	if d.cfg.MisbehaviorLimit > 0 && d.strikes[from] > d.cfg.MisbehaviorLimit {
		d.abort(&Error{
			Kind:     ErrorMisbehavior,
			Culprits: []party.ID{from},
			Round:    d.current,
			Err:      cause,
		})
	}
}

// Stop implements Handler. Cancelling never yields a partial artifact.
func (d *Driver) Stop() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.done {
		return
	}
	d.abort(&Error{Kind: ErrorCancelled, Round: d.current})
}

// Tick implements Handler. The host's event loop is expected to call it
// periodically when a round deadline is configured.
func (d *Driver) Tick(now time.Time) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.done || d.deadline.IsZero() {
		return
	}
	if now.After(d.deadline) {
		d.abort(&Error{
			Kind:  ErrorTimeout,
			Round: d.current,
			Err:   fmt.Errorf("round %d did not complete within %s", d.current, d.cfg.RoundDeadline),
		})
	}
}

func (d *Driver) emit(outbound []Outbound, r round.Number) {
	for _, o := range outbound {
		msg := &Message{
			SSID:        d.ssid,
			From:        d.info.SelfID,
			To:          o.To,
			Broadcast:   o.Broadcast,
			RoundNumber: r,
			Data:        o.Data,
		}
		msg.Seal()
		d.out <- msg
	}
}

// abort moves the session to its terminal Aborted state, notifies the other
// parties unless the abort came from a peer, and releases the round state.
func (d *Driver) abort(reason *Error) {
	if d.done {
		return
	}
	d.err = reason
	if reason.Kind != ErrorPeerAborted {
		msg := &Message{
			SSID:        d.ssid,
			From:        d.info.SelfID,
			Broadcast:   true,
			RoundNumber: d.current,
			Data:        []byte(reason.Kind.String()),
			Abort:       true,
		}
		msg.Seal()
		select {
		case d.out <- msg:
		default:
		}
	}
	d.finish()
}

func (d *Driver) finish() {
	d.done = true
	d.buffer = nil
	d.lookahead = nil
	close(d.out)
}

func asAbort(err error, r round.Number) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.Round == 0 {
			e.Round = r
		}
		return e
	}
	return &Error{Kind: ErrorInconsistentState, Round: r, Err: err}
}

func sortedSenders(m map[party.ID][]byte) party.IDSlice {
	ids := make([]party.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return party.NewIDSlice(ids)
}
