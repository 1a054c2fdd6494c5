package test

import "github.com/mpc-sdk/mpc-driver/pkg/party"

// PartyIDs returns the sorted set {1, …, n}.
func PartyIDs(n int) party.IDSlice {
	ids := make([]party.ID, n)
	for i := range ids {
		ids[i] = party.ID(i + 1)
	}
	return party.NewIDSlice(ids)
}
