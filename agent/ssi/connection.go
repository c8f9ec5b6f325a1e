package ssi

import (
	"context"
	"fmt"

	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/findy-network/findy-triangle/agent/psm"
	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/samber/lo"
)

// CreateInvitation creates the out-of-band invitation and returns it as URL
// under the domain. The id is the invitation ID and the handle of the
// connection exchange. If it's empty a new one is generated.
func (a *Agent) CreateInvitation(_ context.Context, id, domain string) (u string, err error) {
	defer err2.Handle(&err, "create invitation")

	if id == "" {
		id = utils.UUID()
	}
	if domain == "" {
		domain = a.endpoint
	}
	inv := didcomm.NewInvitation(id, a.label, a.did, a.endpoint, a.pubKey)
	try.To1(a.start(psm.KindConnection, id, true, "", psm.Invited, nil))

	return inv.URL(domain), nil
}

// ReceiveInvitation receives the invitation URL and starts the connection by
// sending the request to the inviter. It returns our end's PSM which handle
// is the invitation ID.
func (a *Agent) ReceiveInvitation(_ context.Context, invURL string) (p *psm.PSM, err error) {
	defer err2.Handle(&err, "receive invitation")

	inv := try.To1(didcomm.ParseInvitationURL(invURL))
	connID := utils.UUID()

	p = try.To1(a.start(psm.KindConnection, inv.ID, false, connID, psm.Invited,
		&psm.PairwiseRep{
			StateKey:      a.key(connID),
			InvitationID:  inv.ID,
			TheirDID:      inv.DID,
			TheirLabel:    inv.Label,
			TheirEndpoint: inv.ServiceEndpoint,
		}))
	p = try.To1(a.step(psm.KindConnection, inv.ID, psm.Requested,
		[]psm.SubState{psm.Invited}, nil))

	try.To(a.send(inv.ServiceEndpoint, didcomm.ConnectionRequest, inv.ID,
		didcomm.ConnectionBody{
			Label:    a.label,
			DID:      a.did,
			Endpoint: a.endpoint,
		}))
	return p, nil
}

func (a *Agent) onConnectionRequest(msg *didcomm.Message) (err error) {
	defer err2.Handle(&err, "connection request")

	var body didcomm.ConnectionBody
	try.To(msg.Decode(&body))
	if body.DID != msg.From || body.Endpoint == "" {
		return fmt.Errorf("%w: sender %s", ErrInvalid, msg.From)
	}

	invID := msg.ThreadID()
	connID := utils.UUID()
	try.To1(a.step(psm.KindConnection, invID, psm.Requested,
		[]psm.SubState{psm.Invited},
		func(p *psm.PSM) (psm.Rep, error) {
			if !p.StartedByUs {
				return nil, fmt.Errorf("%w: not our invitation", ErrState)
			}
			p.ConnID = connID
			return &psm.PairwiseRep{
				StateKey:      a.key(connID),
				InvitationID:  invID,
				TheirDID:      body.DID,
				TheirLabel:    body.Label,
				TheirEndpoint: body.Endpoint,
			}, nil
		}))

	return a.send(body.Endpoint, didcomm.ConnectionResponse, invID,
		didcomm.ConnectionBody{
			Label:    a.label,
			DID:      a.did,
			Endpoint: a.endpoint,
		})
}

func (a *Agent) onConnectionResponse(msg *didcomm.Message) (err error) {
	defer err2.Handle(&err, "connection response")

	var body didcomm.ConnectionBody
	try.To(msg.Decode(&body))

	invID := msg.ThreadID()
	var pw *psm.PairwiseRep
	try.To1(a.step(psm.KindConnection, invID, psm.Completed,
		[]psm.SubState{psm.Requested},
		func(p *psm.PSM) (psm.Rep, error) {
			pw = try.To1(psm.GetPairwiseRep(a.key(p.ConnID)))
			if pw.TheirDID != msg.From {
				return nil, fmt.Errorf("%w: response from %s", ErrInvalid, msg.From)
			}
			if body.Endpoint != "" {
				pw.TheirEndpoint = body.Endpoint
			}
			pw.TheirLabel = body.Label
			return pw, nil
		}))

	return a.send(pw.TheirEndpoint, didcomm.ConnectionComplete, invID,
		didcomm.AckBody{Status: "OK"})
}

func (a *Agent) onConnectionComplete(msg *didcomm.Message) (err error) {
	defer err2.Handle(&err, "connection complete")

	try.To1(a.step(psm.KindConnection, msg.ThreadID(), psm.Completed,
		[]psm.SubState{psm.Requested},
		func(p *psm.PSM) (psm.Rep, error) {
			pw := try.To1(psm.GetPairwiseRep(a.key(p.ConnID)))
			if pw.TheirDID != msg.From {
				return nil, fmt.Errorf("%w: complete from %s", ErrInvalid, msg.From)
			}
			return nil, nil
		}))
	return nil
}

// Connections returns all of the agent's connections.
func (a *Agent) Connections() (pws []*psm.PairwiseRep, err error) {
	defer err2.Handle(&err, "connections")

	reps := try.To1(psm.AllReps(psm.BucketPairwise, a.did))
	return lo.Map(reps, func(r psm.Rep, _ int) *psm.PairwiseRep {
		return r.(*psm.PairwiseRep)
	}), nil
}

// FindConnectionByInvitation returns our end's connection which was created
// by the invitation.
func (a *Agent) FindConnectionByInvitation(invitationID string) (pw *psm.PairwiseRep, err error) {
	defer err2.Handle(&err, "find connection")

	pws := try.To1(a.Connections())
	pw, found := lo.Find(pws, func(p *psm.PairwiseRep) bool {
		return p.InvitationID == invitationID
	})
	if !found {
		return nil, fmt.Errorf("%w: invitation %s", ErrNoConnection, invitationID)
	}
	return pw, nil
}

// connection returns the ready connection.
func (a *Agent) connection(connID string) (pw *psm.PairwiseRep, err error) {
	defer err2.Handle(&err, "connection %s", connID)

	pw, err = psm.GetPairwiseRep(a.key(connID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoConnection, err)
	}
	p := try.To1(psm.FindPSM(psm.KindConnection, a.key(pw.InvitationID)))
	if !p.IsReady() {
		return nil, ErrNotReady
	}
	return pw, nil
}

// connectionFrom returns the ready connection to the DID.
func (a *Agent) connectionFrom(theirDID string) (pw *psm.PairwiseRep, err error) {
	defer err2.Handle(&err, "connection from %s", theirDID)

	pws := try.To1(a.Connections())
	pw, found := lo.Find(pws, func(p *psm.PairwiseRep) bool {
		return p.TheirDID == theirDID
	})
	if !found {
		return nil, ErrNoConnection
	}
	glog.V(5).Infoln(a.label, "message over connection", pw.ConnID())
	return a.connection(pw.ConnID())
}
