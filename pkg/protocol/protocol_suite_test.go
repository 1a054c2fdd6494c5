package protocol_test

import (
	crand "crypto/rand"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mpc-sdk/mpc-driver/pkg/party"
	"github.com/mpc-sdk/mpc-driver/pkg/protocol"
	"github.com/mpc-sdk/mpc-driver/protocols/example/schnorr"
)

func TestProtocol(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Protocol Suite")
}

// drainNow empties whatever the driver has emitted so far without blocking.
func drainNow(h protocol.Handler) []*protocol.Message {
	var msgs []*protocol.Message
	for {
		select {
		case m, ok := <-h.Listen():
			if !ok {
				return msgs
			}
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

// runChoreographed executes a full key generation with a centrally controlled
// delivery order. pick selects which pending message is delivered next.
func runChoreographed(n int, pick func(pending []*protocol.Message) int) []*schnorr.KeyShare {
	ids := make([]party.ID, n)
	for i := range ids {
		ids[i] = party.ID(i + 1)
	}
	parties := party.NewIDSlice(ids)

	drivers := map[party.ID]*protocol.Driver{}
	var pending []*protocol.Message
	for _, id := range parties {
		adapter, err := schnorr.NewKeygen(crand.Reader, id, parties)
		Expect(err).NotTo(HaveOccurred())
		d, err := protocol.NewDriver(protocol.SessionConfig{Adapter: adapter})
		Expect(err).NotTo(HaveOccurred())
		drivers[id] = d
		pending = append(pending, drainNow(d)...)
	}

	for len(pending) > 0 {
		i := pick(pending)
		msg := pending[i]
		pending = append(pending[:i], pending[i+1:]...)
		for _, d := range drivers {
			if d.CanAccept(msg) {
				d.Accept(msg)
				pending = append(pending, drainNow(d)...)
			}
		}
	}

	shares := make([]*schnorr.KeyShare, 0, n)
	for _, id := range parties {
		result, err := drivers[id].Result()
		Expect(err).NotTo(HaveOccurred())
		shares = append(shares, result.(*schnorr.KeyShare))
	}
	return shares
}

var _ = Describe("Driver", func() {
	orders := map[string]func(pending []*protocol.Message) int{
		"in order":     func([]*protocol.Message) int { return 0 },
		"newest first": func(pending []*protocol.Message) int { return len(pending) - 1 },
		"middle out":   func(pending []*protocol.Message) int { return len(pending) / 2 },
	}

	for name, pick := range orders {
		Context("with messages delivered "+name, func() {
			It("completes and all parties agree on the group key", func() {
				shares := runChoreographed(4, pick)
				Expect(shares).To(HaveLen(4))
				for _, share := range shares[1:] {
					Expect(share.PublicKey).To(Equal(shares[0].PublicKey))
					Expect(share.PublicShares).To(Equal(shares[0].PublicShares))
				}
			})
		})
	}

	It("never hands out a partial artifact while running", func() {
		ids := party.NewIDSlice([]party.ID{1, 2, 3})
		adapter, err := schnorr.NewKeygen(crand.Reader, 1, ids)
		Expect(err).NotTo(HaveOccurred())
		d, err := protocol.NewDriver(protocol.SessionConfig{Adapter: adapter})
		Expect(err).NotTo(HaveOccurred())

		_, err = d.Result()
		Expect(err).To(HaveOccurred())
		Expect(d.State().Status).To(Equal(protocol.AwaitingMessages))
	})
})
