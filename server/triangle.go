package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/findy-network/findy-triangle/agent/exchange"
	"github.com/findy-network/findy-triangle/agent/ssi"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const (
	schemaVersion = "1.0"
	credDefTag    = "default"

	// DefaultHolderName is issued when the request doesn't name the holder.
	DefaultHolderName = "Jim Ezesinachi"
)

// SchemaAttributes are the attributes of the demo's credentials.
var SchemaAttributes = []string{"name"}

var ErrDisconnected = errors.New("agent-to-agent connection is down")

// Triangle is the issuer-holder pair of the demo and the coordinator which
// runs the exchanges between them. The issuer is also the verifier.
type Triangle struct {
	Issuer      *ssi.Agent
	Holder      *ssi.Agent
	Coordinator *exchange.Coordinator

	lk   sync.RWMutex
	conn *exchange.ConnectionResult
}

type Registration struct {
	SchemaID               string `json:"schemaId"`
	CredentialDefinitionID string `json:"credentialDefinitionId"`
}

type Issuance struct {
	CredentialID           string                        `json:"credentialId"`
	CredentialDefinitionID string                        `json:"credentialDefinitionId"`
	IssuerState            string                        `json:"issuerState"`
	HolderState            string                        `json:"holderState"`
	Attributes             []didcomm.CredentialAttribute `json:"attributes"`
}

type Verification struct {
	ProofID        string               `json:"proofId"`
	VerifierState  string               `json:"verifierState"`
	HolderState    string               `json:"holderState"`
	Verified       bool                 `json:"verified"`
	RevealedValues []didcomm.ProofValue `json:"revealedValues"`
}

// Connect establishes the connection between the issuer and the holder. The
// invitation is given under the address.
func (t *Triangle) Connect(ctx context.Context, address string) (err error) {
	defer err2.Handle(&err, "connect")

	cr := try.To1(t.Coordinator.EstablishConnection(ctx, t.Issuer, t.Holder, address))

	t.lk.Lock()
	t.conn = cr
	t.lk.Unlock()

	glog.V(1).Infof("issuer %s connected to holder %s",
		cr.InitiatorHandle, cr.ResponderHandle)
	return nil
}

// Connection returns the issuer's and the holder's connection IDs.
func (t *Triangle) Connection() (issuerConnID, holderConnID string, err error) {
	t.lk.RLock()
	cr := t.conn
	t.lk.RUnlock()

	if cr == nil {
		return "", "", ErrDisconnected
	}
	ipw, err := t.Issuer.FindConnectionByInvitation(cr.Handle)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrDisconnected, err)
	}
	hpw, err := t.Holder.FindConnectionByInvitation(cr.Handle)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrDisconnected, err)
	}
	return ipw.ConnID(), hpw.ConnID(), nil
}

func (t *Triangle) Connected() bool {
	_, _, err := t.Connection()
	return err == nil
}

// Register registers the schema and the credential definition for it.
func (t *Triangle) Register(schemaName string) (r *Registration, err error) {
	defer err2.Handle(&err, "register %s", schemaName)

	s := try.To1(t.Issuer.RegisterSchema(schemaName, schemaVersion, SchemaAttributes))
	cd := try.To1(t.Issuer.RegisterCredDef(s.ID, credDefTag))
	return &Registration{SchemaID: s.ID, CredentialDefinitionID: cd.ID}, nil
}

// Issue issues the name credential to the holder.
func (t *Triangle) Issue(ctx context.Context, credDefID, holderName string) (is *Issuance, err error) {
	defer err2.Handle(&err, "issue")

	if holderName == "" {
		holderName = DefaultHolderName
	}
	connID, _ := try.To2(t.Connection())
	attrs := []didcomm.CredentialAttribute{{Name: "name", Value: holderName}}

	res := try.To1(t.Coordinator.IssueCredential(ctx, t.Issuer, t.Holder,
		connID, credDefID, attrs))

	return &Issuance{
		CredentialID:           res.Handle,
		CredentialDefinitionID: credDefID,
		IssuerState:            res.Initiator.Sub().String(),
		HolderState:            res.Responder.Sub().String(),
		Attributes:             attrs,
	}, nil
}

// Verify requests the proof of the name issued with the cred def.
func (t *Triangle) Verify(ctx context.Context, credDefID string) (v *Verification, err error) {
	defer err2.Handle(&err, "verify")

	connID, _ := try.To2(t.Connection())
	attrs := []didcomm.ProofAttribute{{Name: "name", CredDefID: credDefID}}

	res := try.To1(t.Coordinator.RequestProof(ctx, t.Issuer, t.Holder, connID, attrs))
	proof := try.To1(t.Issuer.Proof(res.Handle))

	return &Verification{
		ProofID:        res.Handle,
		VerifierState:  res.Initiator.Sub().String(),
		HolderState:    res.Responder.Sub().String(),
		Verified:       proof.Verified,
		RevealedValues: proof.Values,
	}, nil
}
