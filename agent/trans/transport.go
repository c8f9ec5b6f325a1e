/*
Package trans is the agent to agent transport. Messages are sent as JSON over
HTTP POST to the other agent's endpoint. Loopback is the in-memory transport
for the tests and for running both agents without network.
*/
package trans

import (
	"context"
	"errors"

	"github.com/findy-network/findy-triangle/agent/didcomm"
)

const contentType = "application/ssi-agent-wire"

var ErrNoEndpoint = errors.New("no receiver for endpoint")

// Receiver handles the incoming message. It should return fast, i.e. the
// protocol processing is done asynchronously.
type Receiver interface {
	Receive(msg *didcomm.Message) error
}

// Transport sends the message to the endpoint.
type Transport interface {
	Send(ctx context.Context, endpoint string, msg *didcomm.Message) error
}
