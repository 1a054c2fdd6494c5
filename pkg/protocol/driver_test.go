package protocol_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
	"github.com/mpc-sdk/mpc-driver/pkg/protocol"
)

// stubAdapter is a scripted variant: every round broadcasts an opaque
// payload, and advancing the final round yields the string "artifact".
type stubAdapter struct {
	info     protocol.Info
	quorum   party.IDSlice // overrides the all-others default when set
	advanced []round.Number
	inputs   []map[party.ID][]byte
}

func newStubAdapter(selfID party.ID, ids party.IDSlice, final round.Number) *stubAdapter {
	return &stubAdapter{
		info: protocol.Info{
			ProtocolID: "test/stub",
			FinalRound: final,
			SelfID:     selfID,
			PartyIDs:   ids,
		},
	}
}

func (s *stubAdapter) Info() protocol.Info { return s.info }

func (s *stubAdapter) Quorum(round.Number) party.IDSlice {
	if s.quorum != nil {
		return s.quorum
	}
	return s.info.PartyIDs.Remove(s.info.SelfID)
}

func (s *stubAdapter) ValidatePayload(round.Number, party.ID, []byte) error { return nil }

func (s *stubAdapter) Begin() ([]protocol.Outbound, error) {
	return []protocol.Outbound{{Broadcast: true, Data: []byte("round 0")}}, nil
}

func (s *stubAdapter) Advance(r round.Number, inputs map[party.ID][]byte) (*protocol.Step, error) {
	s.advanced = append(s.advanced, r)
	s.inputs = append(s.inputs, inputs)
	if r == s.info.FinalRound {
		return &protocol.Step{Artifact: "artifact"}, nil
	}
	return &protocol.Step{Outbound: []protocol.Outbound{{Broadcast: true, Data: []byte("next round")}}}, nil
}

func peerMessage(ssid []byte, from party.ID, r round.Number, data []byte) *protocol.Message {
	msg := &protocol.Message{
		SSID:        ssid,
		From:        from,
		Broadcast:   true,
		RoundNumber: r,
		Data:        data,
	}
	msg.Seal()
	return msg
}

func newStubDriver(t *testing.T, ids party.IDSlice, final round.Number) (*protocol.Driver, *stubAdapter) {
	t.Helper()
	adapter := newStubAdapter(ids[0], ids, final)
	d, err := protocol.NewDriver(protocol.SessionConfig{Adapter: adapter})
	require.NoError(t, err)
	return d, adapter
}

func abortError(t *testing.T, d *protocol.Driver) *protocol.Error {
	t.Helper()
	_, err := d.Result()
	require.Error(t, err)
	var e *protocol.Error
	require.ErrorAs(t, err, &e)
	return e
}

func TestDriverRunsToCompletion(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})
	d, adapter := newStubDriver(t, ids, 2)

	require.Equal(t, protocol.AwaitingMessages, d.State().Status)
	first := <-d.Listen()
	assert.Equal(t, round.Number(0), first.RoundNumber)
	assert.True(t, first.Broadcast)
	assert.True(t, first.VerifyTag())

	for r := round.Number(0); r <= 2; r++ {
		d.Accept(peerMessage(d.SSID(), 2, r, []byte("payload")))
	}

	result, err := d.Result()
	require.NoError(t, err)
	assert.Equal(t, "artifact", result)
	assert.Equal(t, []round.Number{0, 1, 2}, adapter.advanced)
	assert.Equal(t, protocol.Completed, d.State().Status)

	// two round messages remain, then the channel is closed
	for msg := range d.Listen() {
		assert.False(t, msg.Abort)
	}
}

func TestDriverLookAhead(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})
	d, adapter := newStubDriver(t, ids, 2)

	// one round ahead: cached, not processed
	d.Accept(peerMessage(d.SSID(), 2, 1, []byte("early")))
	st := d.State()
	assert.Equal(t, round.Number(0), st.Round)
	assert.Empty(t, st.Received)
	assert.Empty(t, adapter.advanced)

	// the awaited message arrives: both rounds advance back to back
	d.Accept(peerMessage(d.SSID(), 2, 0, []byte("on time")))
	assert.Equal(t, []round.Number{0, 1}, adapter.advanced)
	assert.Equal(t, round.Number(2), d.State().Round)
}

func TestDriverDropsStaleAndFarFuture(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})
	d, adapter := newStubDriver(t, ids, 2)

	// two rounds ahead: beyond the look-ahead window
	d.Accept(peerMessage(d.SSID(), 2, 2, []byte("too early")))
	assert.Empty(t, adapter.advanced)

	d.Accept(peerMessage(d.SSID(), 2, 0, []byte("payload")))
	require.Equal(t, round.Number(1), d.State().Round)

	// stale: already advanced past round 0
	d.Accept(peerMessage(d.SSID(), 2, 0, []byte("payload")))
	assert.Equal(t, []round.Number{0}, adapter.advanced)
	assert.Empty(t, d.State().Received)
}

func TestDriverDuplicateKeepsFirstPayload(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2, 3})
	d, adapter := newStubDriver(t, ids, 1)

	d.Accept(peerMessage(d.SSID(), 2, 0, []byte("first")))
	d.Accept(peerMessage(d.SSID(), 2, 0, []byte("second")))
	st := d.State()
	assert.Equal(t, party.NewIDSlice([]party.ID{2}), st.Received)
	assert.Empty(t, adapter.advanced)

	d.Accept(peerMessage(d.SSID(), 3, 0, []byte("third")))
	assert.Equal(t, []round.Number{0}, adapter.advanced)
}

func TestDriverRejectsForeignMessages(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})
	d, _ := newStubDriver(t, ids, 2)

	assert.False(t, d.CanAccept(nil))
	// wrong session
	assert.False(t, d.CanAccept(peerMessage([]byte("other ssid"), 2, 0, []byte("x"))))
	// echo of our own message
	assert.False(t, d.CanAccept(peerMessage(d.SSID(), 1, 0, []byte("x"))))
	// addressed to somebody else
	direct := &protocol.Message{SSID: d.SSID(), From: 2, To: 7, RoundNumber: 0, Data: []byte("x")}
	direct.Seal()
	assert.False(t, d.CanAccept(direct))
	// beyond the final round
	assert.False(t, d.CanAccept(peerMessage(d.SSID(), 2, 3, []byte("x"))))
}

func TestDriverUnknownSenderDropped(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2, 3})
	d, adapter := newStubDriver(t, ids, 1)

	d.Accept(peerMessage(d.SSID(), 9, 0, []byte("who is this")))
	assert.Empty(t, d.State().Received)
	assert.Empty(t, adapter.advanced)
}

func TestDriverTamperedTagDropped(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})
	d, adapter := newStubDriver(t, ids, 2)

	msg := peerMessage(d.SSID(), 2, 0, []byte("payload"))
	msg.Data = []byte("tampered")
	d.Accept(msg)
	assert.Empty(t, adapter.advanced)
	assert.Equal(t, protocol.AwaitingMessages, d.State().Status)
}

func TestDriverMisbehaviorLimit(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2, 3})
	adapter := newStubAdapter(1, ids, 2)
	d, err := protocol.NewDriver(protocol.SessionConfig{Adapter: adapter, MisbehaviorLimit: 1})
	require.NoError(t, err)

	bad := func() *protocol.Message {
		msg := peerMessage(d.SSID(), 2, 0, []byte("payload"))
		msg.Data = []byte("tampered")
		return msg
	}
	d.Accept(bad())
	assert.Equal(t, protocol.AwaitingMessages, d.State().Status)
	d.Accept(bad())

	e := abortError(t, d)
	assert.Equal(t, protocol.ErrorMisbehavior, e.Kind)
	assert.Equal(t, []party.ID{2}, e.Culprits)
	assert.Equal(t, protocol.Aborted, d.State().Status)
}

func TestDriverPeerAbort(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})
	d, _ := newStubDriver(t, ids, 2)

	abort := &protocol.Message{
		SSID:        d.SSID(),
		From:        2,
		Broadcast:   true,
		RoundNumber: 0,
		Data:        []byte("peer gave up"),
		Abort:       true,
	}
	abort.Seal()
	d.Accept(abort)

	e := abortError(t, d)
	assert.Equal(t, protocol.ErrorPeerAborted, e.Kind)
	assert.Equal(t, []party.ID{2}, e.Culprits)

	// a peer abort is not echoed back as another abort message
	var aborts int
	for msg := range d.Listen() {
		if msg.Abort {
			aborts++
		}
	}
	assert.Zero(t, aborts)
}

func TestDriverForgedAbortIgnored(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})
	adapter := newStubAdapter(1, ids, 2)
	d, err := protocol.NewDriver(protocol.SessionConfig{Adapter: adapter, MisbehaviorLimit: 1})
	require.NoError(t, err)

	// an abort claiming to be from outside the participant set
	forged := &protocol.Message{
		SSID:        d.SSID(),
		From:        99,
		Broadcast:   true,
		RoundNumber: 0,
		Data:        []byte("die"),
		Abort:       true,
	}
	forged.Seal()
	d.Accept(forged)
	d.Accept(forged) // repeats never reach the misbehavior tolerance either
	assert.Equal(t, protocol.AwaitingMessages, d.State().Status)

	// a participant's abort without a valid integrity tag
	tampered := &protocol.Message{
		SSID:        d.SSID(),
		From:        2,
		Broadcast:   true,
		RoundNumber: 0,
		Data:        []byte("die"),
		Abort:       true,
		Tag:         []byte("garbage"),
	}
	d.Accept(tampered)
	assert.Equal(t, protocol.AwaitingMessages, d.State().Status)

	// a sealed abort from a participant is still honored
	genuine := &protocol.Message{
		SSID:        d.SSID(),
		From:        2,
		Broadcast:   true,
		RoundNumber: 0,
		Data:        []byte("giving up"),
		Abort:       true,
	}
	genuine.Seal()
	d.Accept(genuine)
	e := abortError(t, d)
	assert.Equal(t, protocol.ErrorPeerAborted, e.Kind)
	assert.Equal(t, []party.ID{2}, e.Culprits)
}

func TestDriverAdvanceReceivesQuorumOnly(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2, 3})
	adapter := newStubAdapter(1, ids, 1)
	adapter.quorum = party.NewIDSlice([]party.ID{2})
	d, err := protocol.NewDriver(protocol.SessionConfig{Adapter: adapter})
	require.NoError(t, err)

	// a participant outside the quorum: admitted, but not part of the round
	d.Accept(peerMessage(d.SSID(), 3, 0, []byte("bystander")))
	assert.Empty(t, adapter.advanced)

	d.Accept(peerMessage(d.SSID(), 2, 0, []byte("required")))
	require.Len(t, adapter.inputs, 1)
	assert.Equal(t, map[party.ID][]byte{2: []byte("required")}, adapter.inputs[0])
}

// reentrantAdapter feeds a message back into its own driver from inside
// Advance, which the driver must refuse rather than deadlock on.
type reentrantAdapter struct {
	*stubAdapter
	handler protocol.Handler
	payload *protocol.Message
}

func (a *reentrantAdapter) Advance(r round.Number, inputs map[party.ID][]byte) (*protocol.Step, error) {
	if a.payload != nil {
		a.handler.Accept(a.payload)
		a.payload = nil
	}
	return a.stubAdapter.Advance(r, inputs)
}

func TestDriverRefusesReentrantAccept(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})
	adapter := &reentrantAdapter{stubAdapter: newStubAdapter(1, ids, 2)}
	d, err := protocol.NewDriver(protocol.SessionConfig{Adapter: adapter})
	require.NoError(t, err)

	adapter.handler = d
	adapter.payload = peerMessage(d.SSID(), 2, 1, []byte("from inside"))

	d.Accept(peerMessage(d.SSID(), 2, 0, []byte("payload")))

	// the callback's message was refused, not admitted to round 1
	st := d.State()
	assert.Equal(t, protocol.AwaitingMessages, st.Status)
	assert.Equal(t, round.Number(1), st.Round)
	assert.Empty(t, st.Received)

	// the session is still healthy and can finish normally
	d.Accept(peerMessage(d.SSID(), 2, 1, []byte("payload")))
	d.Accept(peerMessage(d.SSID(), 2, 2, []byte("payload")))
	result, err := d.Result()
	require.NoError(t, err)
	assert.Equal(t, "artifact", result)
}

func TestDriverStop(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})
	d, _ := newStubDriver(t, ids, 2)

	d.Stop()
	d.Stop() // idempotent

	e := abortError(t, d)
	assert.Equal(t, protocol.ErrorCancelled, e.Kind)

	// the round 0 batch, then the abort notification, then closed
	var last *protocol.Message
	for msg := range d.Listen() {
		last = msg
	}
	require.NotNil(t, last)
	assert.True(t, last.Abort)
}

func TestDriverTick(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})
	adapter := newStubAdapter(1, ids, 2)
	d, err := protocol.NewDriver(protocol.SessionConfig{Adapter: adapter, RoundDeadline: time.Minute})
	require.NoError(t, err)

	d.Tick(time.Now())
	assert.Equal(t, protocol.AwaitingMessages, d.State().Status)

	d.Tick(time.Now().Add(2 * time.Minute))
	e := abortError(t, d)
	assert.Equal(t, protocol.ErrorTimeout, e.Kind)
	assert.Empty(t, e.Culprits)
}

func TestDriverNoDeadlineNeverTimesOut(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})
	d, _ := newStubDriver(t, ids, 2)

	d.Tick(time.Now().Add(24 * time.Hour))
	assert.Equal(t, protocol.AwaitingMessages, d.State().Status)
}

func TestDriverSSIDDependsOnConfig(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})

	a, err := protocol.NewDriver(protocol.SessionConfig{Adapter: newStubAdapter(1, ids, 2)})
	require.NoError(t, err)
	b, err := protocol.NewDriver(protocol.SessionConfig{Adapter: newStubAdapter(1, ids, 2)})
	require.NoError(t, err)
	assert.Equal(t, a.SSID(), b.SSID())

	c, err := protocol.NewDriver(protocol.SessionConfig{
		SessionID: []byte("some session"),
		Adapter:   newStubAdapter(1, ids, 2),
	})
	require.NoError(t, err)
	assert.NotEqual(t, a.SSID(), c.SSID())
}

func TestNewDriverRejectsBadConfig(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2})

	_, err := protocol.NewDriver(protocol.SessionConfig{})
	assert.Error(t, err)

	_, err = protocol.NewDriver(protocol.SessionConfig{Adapter: newStubAdapter(7, ids, 2)})
	assert.Error(t, err, "self must be a participant")

	solo := party.NewIDSlice([]party.ID{1})
	_, err = protocol.NewDriver(protocol.SessionConfig{Adapter: newStubAdapter(1, solo, 2)})
	assert.Error(t, err, "need at least two participants")

	_, err = protocol.NewDriver(protocol.SessionConfig{Adapter: newStubAdapter(1, ids, 2), MisbehaviorLimit: -1})
	assert.Error(t, err)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	e := &protocol.Error{Kind: protocol.ErrorInvalidProof, Culprits: []party.ID{3}, Round: 1, Err: cause}
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "invalid proof")
}
