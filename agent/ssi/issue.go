package ssi

import (
	"context"
	"fmt"

	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/findy-network/findy-triangle/agent/psm"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/samber/lo"
)

// OfferCredential starts the issuing by sending the credential offer over the
// connection. The handle is the thread ID of the exchange. The attributes
// must match the schema of the credential definition.
func (a *Agent) OfferCredential(
	_ context.Context,
	connID, handle, credDefID string,
	attrs []didcomm.CredentialAttribute,
) (
	err error,
) {
	defer err2.Handle(&err, "offer credential")

	if handle == "" {
		return fmt.Errorf("%w: empty handle", ErrInvalid)
	}
	try.To(a.registry.checkAttributes(credDefID, attrs))
	pw := try.To1(a.connection(connID))

	try.To1(a.start(psm.KindIssueCredential, handle, true, connID, psm.OfferSent,
		&psm.IssueCredRep{
			StateKey:   a.key(handle),
			ConnID:     connID,
			CredDefID:  credDefID,
			Attributes: attrs,
		}))

	return a.send(pw.TheirEndpoint, didcomm.CredentialOffer, handle,
		didcomm.OfferBody{CredDefID: credDefID, Attributes: attrs})
}

func (a *Agent) onCredentialOffer(msg *didcomm.Message) (err error) {
	defer err2.Handle(&err, "credential offer")

	var body didcomm.OfferBody
	try.To(msg.Decode(&body))
	pw := try.To1(a.connectionFrom(msg.From))

	handle := msg.ThreadID()
	try.To1(a.start(psm.KindIssueCredential, handle, false, pw.ConnID(),
		psm.OfferReceived,
		&psm.IssueCredRep{
			StateKey:   a.key(handle),
			ConnID:     pw.ConnID(),
			CredDefID:  body.CredDefID,
			Attributes: body.Attributes,
		}))
	return nil
}

// AcceptOffer accepts the received credential offer by sending the
// credential request to the issuer.
func (a *Agent) AcceptOffer(ctx context.Context, handle string) (err error) {
	defer err2.Handle(&err, "accept offer")

	try.To(ctx.Err())
	p := try.To1(a.step(psm.KindIssueCredential, handle, psm.Accepted,
		[]psm.SubState{psm.OfferReceived}, nil))
	pw := try.To1(a.connection(p.ConnID))
	rep := try.To1(psm.GetIssueCredRep(a.key(handle)))

	return a.sendContext(ctx, pw.TheirEndpoint, didcomm.CredentialRequest, handle,
		didcomm.OfferBody{CredDefID: rep.CredDefID})
}

func (a *Agent) onCredentialRequest(msg *didcomm.Message) (err error) {
	defer err2.Handle(&err, "credential request")

	handle := msg.ThreadID()
	p := try.To1(a.step(psm.KindIssueCredential, handle, psm.Accepted,
		[]psm.SubState{psm.OfferSent}, nil))
	pw := try.To1(a.connection(p.ConnID))
	if pw.TheirDID != msg.From {
		return fmt.Errorf("%w: request from %s", ErrInvalid, msg.From)
	}
	rep := try.To1(psm.GetIssueCredRep(a.key(handle)))

	try.To(a.send(pw.TheirEndpoint, didcomm.CredentialIssue, handle,
		didcomm.IssueBody{CredDefID: rep.CredDefID, Attributes: rep.Attributes}))

	try.To1(a.step(psm.KindIssueCredential, handle, psm.Done,
		[]psm.SubState{psm.Accepted}, nil))
	return nil
}

func (a *Agent) onCredentialIssue(msg *didcomm.Message) (err error) {
	defer err2.Handle(&err, "credential issue")

	var body didcomm.IssueBody
	try.To(msg.Decode(&body))

	try.To1(a.step(psm.KindIssueCredential, msg.ThreadID(), psm.Done,
		[]psm.SubState{psm.Accepted},
		func(p *psm.PSM) (psm.Rep, error) {
			rep := try.To1(psm.GetIssueCredRep(a.key(p.Key.Nonce)))
			if rep.CredDefID != body.CredDefID {
				return nil, fmt.Errorf("%w: cred def %s", ErrInvalid, body.CredDefID)
			}
			rep.Attributes = body.Attributes
			return rep, nil
		}))
	return nil
}

// Credentials returns the credentials we hold, i.e. the issuings started by
// the other end which are ready.
func (a *Agent) Credentials() (creds []*psm.IssueCredRep, err error) {
	defer err2.Handle(&err, "credentials")

	reps := try.To1(psm.AllReps(psm.BucketIssueCred, a.did))
	creds = lo.FilterMap(reps, func(r psm.Rep, _ int) (*psm.IssueCredRep, bool) {
		p, err := psm.FindPSM(psm.KindIssueCredential, r.Key())
		if err != nil || p.StartedByUs || !p.IsReady() {
			return nil, false
		}
		return r.(*psm.IssueCredRep), true
	})
	return creds, nil
}

// issued returns the credentials we have issued to the connection.
func (a *Agent) issued(connID string) (creds []*psm.IssueCredRep, err error) {
	defer err2.Handle(&err, "issued credentials")

	reps := try.To1(psm.AllReps(psm.BucketIssueCred, a.did))
	creds = lo.FilterMap(reps, func(r psm.Rep, _ int) (*psm.IssueCredRep, bool) {
		rep := r.(*psm.IssueCredRep)
		if rep.ConnID != connID {
			return nil, false
		}
		p, err := psm.FindPSM(psm.KindIssueCredential, r.Key())
		if err != nil || !p.StartedByUs || !p.IsReady() {
			return nil, false
		}
		return rep, true
	})
	return creds, nil
}
