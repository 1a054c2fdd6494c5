package protocol

import (
	"errors"
	"fmt"
	"time"
)

// SessionConfig fixes the parameters of a session. It is immutable once the
// driver is constructed.
type SessionConfig struct {
	// SessionID is an optional byte slice provided by the host. When used,
	// it should be unique for each execution of the protocol; it is mixed
	// into the derived SSID.
	SessionID []byte
	// Adapter is the protocol variant, selected once. It carries the
	// participant set, protocol parameters and the injected randomness.
	Adapter Adapter
	// MisbehaviorLimit is the number of invalid messages tolerated per
	// sender before the session aborts. Zero means no limit: bad messages
	// are dropped forever without ever failing the session.
	MisbehaviorLimit int
	// RoundDeadline bounds how long the driver waits for a round to
	// complete, checked by Tick. Zero disables deadlines.
	RoundDeadline time.Duration
}

func (c *SessionConfig) validate() error {
	if c.Adapter == nil {
		return errors.New("protocol: config: adapter is nil")
	}
	info := c.Adapter.Info()
	if !info.PartyIDs.Valid() {
		return errors.New("protocol: config: invalid participant set")
	}
	if len(info.PartyIDs) < 2 {
		return fmt.Errorf("protocol: config: need at least 2 participants, got %d", len(info.PartyIDs))
	}
	if !info.PartyIDs.Contains(info.SelfID) {
		return fmt.Errorf("protocol: config: self ID %s not in participant set", info.SelfID)
	}
	if c.MisbehaviorLimit < 0 {
		return errors.New("protocol: config: negative misbehavior limit")
	}
	if c.RoundDeadline < 0 {
		return errors.New("protocol: config: negative round deadline")
	}
	return nil
}
