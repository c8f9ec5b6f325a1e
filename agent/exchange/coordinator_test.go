package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/findy-network/findy-triangle/agent/psm"
	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newFakes(t *testing.T) (*fakeSource, *fakeResponder, *MockActions) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	actions := NewMockActions(ctrl)
	return newFakeSource("initiator"),
		&fakeResponder{fakeSource: newFakeSource("responder"), MockActions: actions},
		actions
}

func TestCoordinator_EventInsideCommand(t *testing.T) {
	initiator, responder, _ := newFakes(t)
	c := NewCoordinator(time.Second)
	handle := utils.UUID()

	before := testutil.ToFloat64(exchanges.WithLabelValues("connection", "success"))
	res, err := c.Run(ctx, psm.KindConnection, handle, initiator, responder,
		func(context.Context) error {
			// both ends are ready before the command returns
			initiator.publish(psm.KindConnection, handle, psm.Invited)
			responder.publish(psm.KindConnection, handle, psm.Requested)
			initiator.publish(psm.KindConnection, handle, psm.Completed)
			responder.publish(psm.KindConnection, handle, psm.Completed)
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, handle, res.Handle)
	require.Equal(t, psm.Completed, res.Initiator.Sub())
	require.Equal(t, psm.Completed, res.Responder.Sub())

	require.Equal(t, 0, initiator.Events().Count())
	require.Equal(t, 0, responder.Events().Count())
	require.Equal(t, before+1,
		testutil.ToFloat64(exchanges.WithLabelValues("connection", "success")))
}

func TestCoordinator_ResponderActs(t *testing.T) {
	initiator, responder, actions := newFakes(t)
	c := NewCoordinator(time.Second)
	handle := utils.UUID()

	actions.EXPECT().AcceptOffer(gomock.Any(), handle).DoAndReturn(
		func(context.Context, string) error {
			responder.publish(psm.KindIssueCredential, handle, psm.Accepted)
			initiator.publish(psm.KindIssueCredential, handle, psm.Accepted)
			initiator.publish(psm.KindIssueCredential, handle, psm.Done)
			responder.publish(psm.KindIssueCredential, handle, psm.Done)
			return nil
		}).Times(1)

	res, err := c.Run(ctx, psm.KindIssueCredential, handle, initiator, responder,
		func(context.Context) error {
			initiator.publish(psm.KindIssueCredential, handle, psm.OfferSent)
			responder.publish(psm.KindIssueCredential, handle, psm.OfferReceived)
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, psm.Done, res.Initiator.Sub())
	require.Equal(t, psm.Done, res.Responder.Sub())
}

func TestCoordinator_TimeoutAfterActionFailure(t *testing.T) {
	initiator, responder, actions := newFakes(t)
	c := NewCoordinator(shortTimeout)
	handle := utils.UUID()

	actions.EXPECT().AcceptOffer(gomock.Any(), handle).
		Return(errors.New("wallet is locked")).Times(1)

	_, err := c.Run(ctx, psm.KindIssueCredential, handle, initiator, responder,
		func(context.Context) error {
			initiator.publish(psm.KindIssueCredential, handle, psm.OfferSent)
			responder.publish(psm.KindIssueCredential, handle, psm.OfferReceived)
			return nil
		})
	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, ErrActionFailed)
	require.Equal(t, 0, initiator.Events().Count())
	require.Equal(t, 0, responder.Events().Count())
}

func TestCoordinator_ActionStopsAfterTimeout(t *testing.T) {
	initiator, responder, actions := newFakes(t)
	c := NewCoordinator(shortTimeout)
	handle := utils.UUID()

	var actionErr error
	actions.EXPECT().AcceptOffer(gomock.Any(), handle).DoAndReturn(
		func(ctx context.Context, _ string) error {
			<-ctx.Done()
			actionErr = ctx.Err()
			return actionErr
		}).Times(1)

	start := time.Now()
	_, err := c.Run(ctx, psm.KindIssueCredential, handle, initiator, responder,
		func(context.Context) error {
			initiator.publish(psm.KindIssueCredential, handle, psm.OfferSent)
			responder.publish(psm.KindIssueCredential, handle, psm.OfferReceived)
			return nil
		})
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), utils.Settings.ExchangeTimeout())

	// the action is done when Run returns
	require.ErrorIs(t, actionErr, context.Canceled)
}

func TestCoordinator_Timeout(t *testing.T) {
	initiator, responder, _ := newFakes(t)
	c := NewCoordinator(shortTimeout)
	handle := utils.UUID()

	_, err := c.Run(ctx, psm.KindPresentProof, handle, initiator, responder,
		func(context.Context) error {
			initiator.publish(psm.KindPresentProof, handle, psm.RequestSent)
			return nil
		})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTimeout) || errors.Is(err, ErrNotFound))
	require.False(t, errors.Is(err, ErrActionFailed))
	require.Equal(t, 0, initiator.Events().Count())
	require.Equal(t, 0, responder.Events().Count())
}

func TestCoordinator_Validation(t *testing.T) {
	initiator, responder, _ := newFakes(t)
	c := NewCoordinator(time.Second)
	errCmd := errors.New("unknown connection")

	_, err := c.Run(ctx, psm.KindIssueCredential, utils.UUID(), initiator, responder,
		func(context.Context) error {
			return errCmd
		})
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, errCmd)
	require.Equal(t, 0, initiator.Events().Count())
	require.Equal(t, 0, responder.Events().Count())
}

func TestCoordinator_AlreadyWaiting(t *testing.T) {
	initiator, responder, _ := newFakes(t)
	c := NewCoordinator(time.Second)
	handle := utils.UUID()

	wt, err := c.waiter.Start(ctx, responder, psm.KindConnection, handle, nil, time.Second)
	require.NoError(t, err)
	defer wt.Cancel()

	_, err = c.Run(ctx, psm.KindConnection, handle, initiator, responder,
		func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrAlreadyWaiting)
	require.Equal(t, 0, initiator.Events().Count())
}

func TestCoordinator_BadParameters(t *testing.T) {
	c := NewCoordinator(time.Second)

	_, err := c.IssueCredential(ctx, nil, nil, "", "cred-def",
		[]didcomm.CredentialAttribute{{Name: "name", Value: "Alice"}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = c.IssueCredential(ctx, nil, nil, "conn", "cred-def", nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = c.RequestProof(ctx, nil, nil, "conn", nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{ErrTimeout, "timeout"},
		{ErrNotFound, "not_found"},
		{ErrValidation, "validation"},
		{errors.Join(ErrTimeout, ErrActionFailed), "action_failed"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, outcome(tt.err))
	}
}
