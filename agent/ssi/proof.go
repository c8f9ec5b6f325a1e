package ssi

import (
	"context"
	"fmt"

	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/findy-network/findy-triangle/agent/psm"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/samber/lo"
)

const proofRequestName = "Proof of Name"

// RequestProof starts the proof by sending the presentation request over the
// connection. The handle is the thread ID of the exchange.
func (a *Agent) RequestProof(
	_ context.Context,
	connID, handle string,
	attrs []didcomm.ProofAttribute,
) (
	err error,
) {
	defer err2.Handle(&err, "request proof")

	if handle == "" {
		return fmt.Errorf("%w: empty handle", ErrInvalid)
	}
	if len(attrs) == 0 || lo.ContainsBy(attrs, func(at didcomm.ProofAttribute) bool {
		return at.Name == ""
	}) {
		return fmt.Errorf("%w: requested attributes", ErrInvalid)
	}
	pw := try.To1(a.connection(connID))

	try.To1(a.start(psm.KindPresentProof, handle, true, connID, psm.RequestSent,
		&psm.PresentProofRep{
			StateKey:   a.key(handle),
			ConnID:     connID,
			Attributes: attrs,
		}))

	return a.send(pw.TheirEndpoint, didcomm.PresentationRequest, handle,
		didcomm.ProofRequestBody{Name: proofRequestName, Attributes: attrs})
}

func (a *Agent) onPresentationRequest(msg *didcomm.Message) (err error) {
	defer err2.Handle(&err, "presentation request")

	var body didcomm.ProofRequestBody
	try.To(msg.Decode(&body))
	pw := try.To1(a.connectionFrom(msg.From))

	handle := msg.ThreadID()
	try.To1(a.start(psm.KindPresentProof, handle, false, pw.ConnID(),
		psm.RequestReceived,
		&psm.PresentProofRep{
			StateKey:   a.key(handle),
			ConnID:     pw.ConnID(),
			Attributes: body.Attributes,
		}))
	return nil
}

// SelectCredentials selects our credentials for the proof request. If some
// of the requested attributes cannot be satisfied the selection is empty.
func (a *Agent) SelectCredentials(_ context.Context, handle string) (sel didcomm.Selection, err error) {
	defer err2.Handle(&err, "select credentials")

	p := try.To1(psm.FindPSM(psm.KindPresentProof, a.key(handle)))
	if p.Sub() != psm.RequestReceived {
		return sel, fmt.Errorf("%w: %s is %s", ErrState, handle, p.Sub())
	}
	rep := try.To1(psm.GetPresentProofRep(a.key(handle)))
	creds := try.To1(a.Credentials())

	for _, attr := range rep.Attributes {
		var value string
		cred, found := lo.Find(creds, func(c *psm.IssueCredRep) bool {
			if attr.CredDefID != "" && c.CredDefID != attr.CredDefID {
				return false
			}
			v, ok := c.Value(attr.Name)
			value = v
			return ok
		})
		if !found {
			glog.V(1).Infof("%s: no credential for %s (%s)",
				a.label, attr.Name, attr.CredDefID)
			return didcomm.Selection{}, nil
		}
		sel.Credentials = append(sel.Credentials, didcomm.SelectedCredential{
			Attribute:    attr.Name,
			CredentialID: cred.Nonce,
			CredDefID:    cred.CredDefID,
			Value:        value,
		})
	}
	return sel, nil
}

// AcceptRequest sends the presentation built from the selection.
func (a *Agent) AcceptRequest(ctx context.Context, handle string, sel didcomm.Selection) (err error) {
	defer err2.Handle(&err, "accept request")

	try.To(ctx.Err())
	if sel.IsEmpty() {
		return fmt.Errorf("%w: empty selection", ErrInvalid)
	}
	values := sel.Values()
	p := try.To1(a.step(psm.KindPresentProof, handle, psm.Accepted,
		[]psm.SubState{psm.RequestReceived},
		func(p *psm.PSM) (psm.Rep, error) {
			rep := try.To1(psm.GetPresentProofRep(a.key(handle)))
			rep.Values = values
			return rep, nil
		}))
	pw := try.To1(a.connection(p.ConnID))

	return a.sendContext(ctx, pw.TheirEndpoint, didcomm.Presentation, handle,
		didcomm.PresentationBody{Values: values})
}

func (a *Agent) onPresentation(msg *didcomm.Message) (err error) {
	defer err2.Handle(&err, "presentation")

	var body didcomm.PresentationBody
	try.To(msg.Decode(&body))

	handle := msg.ThreadID()
	p := try.To1(psm.FindPSM(psm.KindPresentProof, a.key(handle)))
	pw := try.To1(a.connection(p.ConnID))
	if pw.TheirDID != msg.From {
		return fmt.Errorf("%w: presentation from %s", ErrInvalid, msg.From)
	}
	rep := try.To1(psm.GetPresentProofRep(a.key(handle)))
	if !try.To1(a.verify(rep, body.Values)) {
		glog.Warningf("%s: presentation %s not verified", a.label, handle)
		return nil
	}

	try.To1(a.step(psm.KindPresentProof, handle, psm.Accepted,
		[]psm.SubState{psm.RequestSent},
		func(*psm.PSM) (psm.Rep, error) {
			rep.Values = body.Values
			rep.Verified = true
			return rep, nil
		}))
	try.To(a.send(pw.TheirEndpoint, didcomm.PresentationAck, handle,
		didcomm.AckBody{Status: "OK"}))
	try.To1(a.step(psm.KindPresentProof, handle, psm.Done,
		[]psm.SubState{psm.Accepted}, nil))
	return nil
}

// verify checks that every requested attribute is presented, the restriction
// holds and that we have issued the value to this connection.
func (a *Agent) verify(rep *psm.PresentProofRep, values []didcomm.ProofValue) (ok bool, err error) {
	defer err2.Handle(&err, "verify")

	issued := try.To1(a.issued(rep.ConnID))
	for _, attr := range rep.Attributes {
		pv, found := lo.Find(values, func(v didcomm.ProofValue) bool {
			return v.Name == attr.Name
		})
		if !found || (attr.CredDefID != "" && pv.CredDefID != attr.CredDefID) {
			return false, nil
		}
		if !lo.ContainsBy(issued, func(c *psm.IssueCredRep) bool {
			v, ok := c.Value(pv.Name)
			return ok && v == pv.Value && c.CredDefID == pv.CredDefID
		}) {
			return false, nil
		}
	}
	return true, nil
}

func (a *Agent) onPresentationAck(msg *didcomm.Message) (err error) {
	defer err2.Handle(&err, "presentation ack")

	try.To1(a.step(psm.KindPresentProof, msg.ThreadID(), psm.Done,
		[]psm.SubState{psm.Accepted}, nil))
	return nil
}

// Proof returns the proof data of the exchange.
func (a *Agent) Proof(handle string) (*psm.PresentProofRep, error) {
	return psm.GetPresentProofRep(a.key(handle))
}
