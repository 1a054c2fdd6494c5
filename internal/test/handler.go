package test

import (
	"github.com/mpc-sdk/mpc-driver/pkg/party"
	"github.com/mpc-sdk/mpc-driver/pkg/protocol"
)

// HandlerLoop blocks until the handler h is done, pumping messages between
// the handler and the network.
func HandlerLoop(id party.ID, h protocol.Handler, network *Network) {
	for {
		select {
		// outgoing messages
		case msg, ok := <-h.Listen():
			if !ok {
				<-network.Done(id)
				// the channel was closed, indicating that the protocol is done executing.
				return
			}
			go network.Send(msg)

		// incoming messages
		case msg := <-network.Next(id):
			h.Accept(msg)
		}
	}
}
