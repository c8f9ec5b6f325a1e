/*
Package exchange coordinates the exchanges between two agents of the trust
triangle. The agents run their protocols asynchronously and tell about the
progress by the events of their buses. The Coordinator turns that into one
blocking call: it registers the waiters and the responder's AutoActor, sends
the initiating command, and returns when both ends have reached the terminal
state of the exchange, or the deadline has passed.

The Waiter is race free. It's subscribed before the command is sent, and it
asks the current state of the exchange from the agent at the same time. That
way the state change which happened before the subscription isn't lost.
*/
package exchange

import (
	"context"

	"github.com/findy-network/findy-triangle/agent/bus"
	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/findy-network/findy-triangle/agent/psm"
)

//go:generate mockgen -destination=mock_exchange_test.go -package=exchange github.com/findy-network/findy-triangle/agent/exchange Actions

// Source is the agent whose exchanges can be waited.
type Source interface {
	DID() string
	Events() *bus.Bus

	// Query returns the current record of the exchange. The error wraps
	// storage.ErrDataNotFound if the agent doesn't have the exchange.
	Query(ctx context.Context, kind psm.Kind, handle string) (*psm.PSM, error)
}

// Actions are the responder's answers to the initiator's protocol messages.
type Actions interface {
	AcceptOffer(ctx context.Context, handle string) error
	SelectCredentials(ctx context.Context, handle string) (didcomm.Selection, error)
	AcceptRequest(ctx context.Context, handle string, sel didcomm.Selection) error
}

type Responder interface {
	Source
	Actions
}

type Inviter interface {
	Source
	CreateInvitation(ctx context.Context, id, domain string) (string, error)
}

type Invitee interface {
	Responder
	ReceiveInvitation(ctx context.Context, invURL string) (*psm.PSM, error)
}

type Issuer interface {
	Source
	OfferCredential(
		ctx context.Context,
		connID, handle, credDefID string,
		attrs []didcomm.CredentialAttribute,
	) error
}

type Verifier interface {
	Source
	RequestProof(
		ctx context.Context,
		connID, handle string,
		attrs []didcomm.ProofAttribute,
	) error
}
