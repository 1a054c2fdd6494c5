package session

import (
	"context"

	"github.com/mpc-sdk/mpc-driver/pkg/party"
	"github.com/mpc-sdk/mpc-driver/pkg/protocol"
)

// State describes a negotiated session as reported by the transport.
type State struct {
	// ID is the transport assigned session identifier.
	ID []byte
	// PartyIDs is the sorted participant set.
	PartyIDs party.IDSlice
}

// Event is a transport notification delivered to the negotiation state
// machines and to the bridge.
type Event interface {
	event()
}

// Created is delivered to the initiator once the transport allocated the
// session.
type Created struct {
	Session State
}

// Ready means all participants completed their transport handshake and peer
// connections can be established.
type Ready struct {
	Session State
}

// Connected means a peer connection with the given party is established.
type Connected struct {
	Peer party.ID
}

// Active means every pair of participants is connected; the protocol can
// start.
type Active struct {
	Session State
}

// Finished means the transport closed the session.
type Finished struct {
	ID []byte
}

// Closed means the transport connection itself went away.
type Closed struct{}

// MessageReceived carries an inbound protocol message.
type MessageReceived struct {
	Message *protocol.Message
}

func (Created) event()         {}
func (Ready) event()           {}
func (Connected) event()       {}
func (Active) event()          {}
func (Finished) event()        {}
func (Closed) event()          {}
func (MessageReceived) event() {}

// Transport is the external collaborator that moves messages and manages
// session lifecycle. Delivery is not guaranteed; the driver tolerates loss
// through its abort paths.
type Transport interface {
	// NewSession asks the transport to allocate a session for the given
	// participants. The transport answers with a Created event.
	NewSession(ctx context.Context, participants party.IDSlice) error
	// Connect establishes a peer connection. The transport answers with a
	// Connected event.
	Connect(ctx context.Context, peer party.ID) error
	// Register records an established peer connection within a session.
	Register(ctx context.Context, sessionID []byte, peer party.ID) error
	// Send delivers a sealed protocol message to its recipients.
	Send(ctx context.Context, msg *protocol.Message) error
	// Close tears the session down.
	Close(ctx context.Context, sessionID []byte) error
}
