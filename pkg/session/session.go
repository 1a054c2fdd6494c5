// Package session negotiates protocol sessions over an abstract transport.
//
// A session moves through created, ready and active phases before a protocol
// driver runs in it. One designated party initiates; the others participate.
// Both sides are event driven state machines: the host feeds every transport
// event into HandleEvent and a non-nil State return means the session is
// active.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/mpc-sdk/mpc-driver/pkg/party"
)

// Initiator creates a session and waits for all participants to connect.
type Initiator struct {
	transport    Transport
	selfID       party.ID
	participants party.IDSlice

	state     *State
	connected map[party.ID]bool
}

// NewInitiator prepares the initiating side of a session among participants,
// which must include selfID.
func NewInitiator(transport Transport, selfID party.ID, participants party.IDSlice) (*Initiator, error) {
	if transport == nil {
		return nil, errors.New("session: transport is nil")
	}
	if !participants.Valid() || !participants.Contains(selfID) {
		return nil, errors.New("session: invalid participant set")
	}
	return &Initiator{
		transport:    transport,
		selfID:       selfID,
		participants: participants,
		connected:    map[party.ID]bool{},
	}, nil
}

// Start asks the transport to allocate the session.
func (i *Initiator) Start(ctx context.Context) error {
	return i.transport.NewSession(ctx, i.participants)
}

// HandleEvent advances the negotiation. It returns the session state once
// the session is active, and nil while negotiation is still in progress.
func (i *Initiator) HandleEvent(ctx context.Context, ev Event) (*State, error) {
	switch t := ev.(type) {
	case Created:
		s := t.Session
		i.state = &s
		return nil, nil

	case Ready:
		// all parties finished their transport handshake; dial the peers
		// this side is responsible for
		if i.state == nil {
			s := t.Session
			i.state = &s
		}
		return nil, i.dialLowerPeers(ctx)

	case Connected:
		if i.state == nil {
			return nil, errors.New("session: peer connected before session created")
		}
		if !i.participants.Contains(t.Peer) {
			return nil, fmt.Errorf("session: connection from unknown party %s", t.Peer)
		}
		if !i.connected[t.Peer] {
			i.connected[t.Peer] = true
			if err := i.transport.Register(ctx, i.state.ID, t.Peer); err != nil {
				return nil, err
			}
		}
		return nil, nil

	case Active:
		s := t.Session
		i.state = &s
		return i.state, nil

	default:
		return nil, nil
	}
}

// Close tears the session down.
func (i *Initiator) Close(ctx context.Context) error {
	if i.state == nil {
		return nil
	}
	return i.transport.Close(ctx, i.state.ID)
}

func (i *Initiator) dialLowerPeers(ctx context.Context) error {
	return dialLowerPeers(ctx, i.transport, i.selfID, i.participants)
}

// Participant joins a session created by an initiator.
type Participant struct {
	transport Transport
	selfID    party.ID

	state     *State
	connected map[party.ID]bool
}

// NewParticipant prepares the joining side of a session.
func NewParticipant(transport Transport, selfID party.ID) (*Participant, error) {
	if transport == nil {
		return nil, errors.New("session: transport is nil")
	}
	return &Participant{
		transport: transport,
		selfID:    selfID,
		connected: map[party.ID]bool{},
	}, nil
}

// HandleEvent advances the negotiation. It returns the session state once
// the session is active, and nil while negotiation is still in progress.
func (p *Participant) HandleEvent(ctx context.Context, ev Event) (*State, error) {
	switch t := ev.(type) {
	case Ready:
		s := t.Session
		if !s.PartyIDs.Contains(p.selfID) {
			return nil, fmt.Errorf("session: party %s is not a participant", p.selfID)
		}
		p.state = &s
		// register peers that connected before the ready notification
		for _, peer := range bufferedPeers(p.connected) {
			if err := p.transport.Register(ctx, s.ID, peer); err != nil {
				return nil, err
			}
		}
		return nil, dialLowerPeers(ctx, p.transport, p.selfID, s.PartyIDs)

	case Connected:
		if p.state == nil {
			// the ready notification has not arrived yet; remember the peer
			p.connected[t.Peer] = true
			return nil, nil
		}
		if !p.connected[t.Peer] {
			p.connected[t.Peer] = true
			if err := p.transport.Register(ctx, p.state.ID, t.Peer); err != nil {
				return nil, err
			}
		}
		return nil, nil

	case Active:
		s := t.Session
		p.state = &s
		return p.state, nil

	default:
		return nil, nil
	}
}

func bufferedPeers(connected map[party.ID]bool) party.IDSlice {
	ids := make([]party.ID, 0, len(connected))
	for id := range connected {
		ids = append(ids, id)
	}
	return party.NewIDSlice(ids)
}

// dialLowerPeers connects to every participant with a lower ID. Each pair of
// parties ends up with exactly one connection attempt between them.
func dialLowerPeers(ctx context.Context, t Transport, selfID party.ID, participants party.IDSlice) error {
	for _, id := range participants {
		if id >= selfID {
			break
		}
		if err := t.Connect(ctx, id); err != nil {
			return fmt.Errorf("session: connect to %s: %w", id, err)
		}
	}
	return nil
}
