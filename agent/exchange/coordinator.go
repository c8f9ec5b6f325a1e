package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/findy-network/findy-triangle/agent/psm"
	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"golang.org/x/sync/errgroup"
)

// Result has the terminal records of both ends of the exchange.
type Result struct {
	Handle    string
	Initiator *psm.PSM
	Responder *psm.PSM
}

// ConnectionResult adds the connection IDs of both ends. They are the
// handles of the connection for the later exchanges.
type ConnectionResult struct {
	Result
	InitiatorHandle string
	ResponderHandle string
}

// Coordinator runs the exchanges between two agents. It's safe to use from
// many goroutines.
type Coordinator struct {
	// Timeout is the deadline of one exchange. Zero means the default.
	Timeout time.Duration

	waiter *Waiter
}

func NewCoordinator(timeout time.Duration) *Coordinator {
	return &Coordinator{Timeout: timeout, waiter: NewWaiter()}
}

func (c *Coordinator) timeout() time.Duration {
	if c.Timeout <= 0 {
		return utils.Settings.ExchangeTimeout()
	}
	return c.Timeout
}

// Run runs one exchange. The responder's AutoActor and the waiters of both
// ends are registered before the cmd is called. Run returns when both ends
// are in the terminal state. If the exchange timed out after the failed
// responder action, the error is both ErrTimeout and ErrActionFailed. The
// cmd's error is ErrValidation.
func (c *Coordinator) Run(
	ctx context.Context,
	kind psm.Kind,
	handle string,
	initiator Source,
	responder Responder,
	cmd func(ctx context.Context) error,
) (
	res *Result,
	err error,
) {
	defer err2.Handle(&err, "%s %s", kind, handle)

	start := time.Now()
	defer func() {
		exchanges.WithLabelValues(kind.String(), outcome(err)).Inc()
		if err == nil {
			exchangeTime.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
		}
	}()

	// the actions must not continue the exchange after we have returned
	actCtx, cancelActions := context.WithCancel(ctx)
	actor := NewAutoActor(actCtx, responder.Events().Name(), responder)
	defer func() {
		cancelActions()
		actor.Wait()
	}()
	actor.Own(handle)
	sub := actor.Register(responder.Events(), kind)
	defer sub.Unsubscribe()

	timeout := c.timeout()
	rWait, err := c.waiter.Start(ctx, responder, kind, handle, Ready, timeout)
	if err != nil {
		return nil, err
	}
	iWait, err := c.waiter.Start(ctx, initiator, kind, handle, Ready, timeout)
	if err != nil {
		rWait.Cancel()
		return nil, err
	}

	res = &Result{Handle: handle}
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := cmd(gCtx); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil
	})
	g.Go(func() (err error) {
		res.Responder, err = rWait.Result(gCtx)
		return err
	})
	g.Go(func() (err error) {
		res.Initiator, err = iWait.Result(gCtx)
		return err
	})
	err = g.Wait()

	if errors.Is(err, ErrTimeout) {
		if failure := actor.Failure(handle); failure != nil {
			err = fmt.Errorf("%w: %w", err, failure)
		}
	}
	if err != nil {
		glog.Warningf("%s %s failed: %v", kind, handle, err)
		return nil, err
	}
	glog.V(1).Infof("%s %s ready in %v", kind, handle, time.Since(start))
	return res, nil
}

// EstablishConnection connects the agents. The initiator creates the
// invitation under the address and the responder accepts it.
func (c *Coordinator) EstablishConnection(
	ctx context.Context,
	initiator Inviter,
	responder Invitee,
	address string,
) (
	cr *ConnectionResult,
	err error,
) {
	defer err2.Handle(&err, "establish connection")

	handle := utils.UUID()
	res, err := c.Run(ctx, psm.KindConnection, handle, initiator, responder,
		func(ctx context.Context) error {
			invURL, err := initiator.CreateInvitation(ctx, handle, address)
			if err != nil {
				return err
			}
			_, err = responder.ReceiveInvitation(ctx, invURL)
			return err
		})
	if err != nil {
		return nil, err
	}
	return &ConnectionResult{
		Result:          *res,
		InitiatorHandle: res.Initiator.ConnID,
		ResponderHandle: res.Responder.ConnID,
	}, nil
}

// IssueCredential issues the credential over the connection. The connID is
// the initiator's connection ID.
func (c *Coordinator) IssueCredential(
	ctx context.Context,
	initiator Issuer,
	responder Responder,
	connID, credDefID string,
	attrs []didcomm.CredentialAttribute,
) (
	res *Result,
	err error,
) {
	if connID == "" || credDefID == "" || len(attrs) == 0 {
		return nil, fmt.Errorf("%w: connection, cred def and attributes are needed",
			ErrValidation)
	}
	handle := utils.UUID()
	return c.Run(ctx, psm.KindIssueCredential, handle, initiator, responder,
		func(ctx context.Context) error {
			return initiator.OfferCredential(ctx, connID, handle, credDefID, attrs)
		})
}

// RequestProof asks the responder to prove the attributes. The connID is the
// initiator's connection ID.
func (c *Coordinator) RequestProof(
	ctx context.Context,
	initiator Verifier,
	responder Responder,
	connID string,
	attrs []didcomm.ProofAttribute,
) (
	res *Result,
	err error,
) {
	if connID == "" || len(attrs) == 0 {
		return nil, fmt.Errorf("%w: connection and attributes are needed",
			ErrValidation)
	}
	handle := utils.UUID()
	return c.Run(ctx, psm.KindPresentProof, handle, initiator, responder,
		func(ctx context.Context) error {
			return initiator.RequestProof(ctx, connID, handle, attrs)
		})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrActionFailed):
		return "action_failed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "error"
	}
}
