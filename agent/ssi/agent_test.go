package ssi

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/findy-network/findy-triangle/agent/psm"
	"github.com/findy-network/findy-triangle/agent/trans"
	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/stretchr/testify/require"
)

const (
	dbPath   = "ssi_test.bolt"
	waitTime = 5 * time.Second
	tick     = 10 * time.Millisecond
)

var ctx = context.Background()

func TestMain(m *testing.M) {
	setUp()
	code := m.Run()
	tearDown()
	os.Exit(code)
}

func setUp() {
	defer err2.Catch(err2.Err(func(err error) {
		fmt.Println("error on setup", err)
	}))

	// We don't want logs on file with tests
	try.To(flag.Set("logtostderr", "true"))

	utils.Settings.SetLocalTestMode(true)
	try.To(psm.Open(dbPath, ""))
}

func tearDown() {
	psm.Close()
	os.Remove(dbPath)
	os.Remove(dbPath + "_backup")
}

func newAgent(t *testing.T, lb *trans.Loopback, label string) *Agent {
	t.Helper()
	endpoint := "loopback://" + label + "/" + utils.UUID()
	a, err := New(Config{Label: label, Endpoint: endpoint, Transport: lb})
	require.NoError(t, err)
	lb.Register(endpoint, a)
	t.Cleanup(func() { lb.Unregister(endpoint) })
	return a
}

func waitState(t *testing.T, a *Agent, kind psm.Kind, handle string, s psm.SubState) {
	t.Helper()
	require.Eventually(t, func() bool {
		p, err := a.Query(ctx, kind, handle)
		return err == nil && p.Sub() == s
	}, waitTime, tick, "%s: %s %s never reached %s", a.Label(), kind, handle, s)
}

// connect returns issuer's and holder's connection IDs.
func connect(t *testing.T, issuer, holder *Agent) (string, string) {
	t.Helper()
	invID := utils.UUID()
	u, err := issuer.CreateInvitation(ctx, invID, "")
	require.NoError(t, err)
	_, err = holder.ReceiveInvitation(ctx, u)
	require.NoError(t, err)

	waitState(t, issuer, psm.KindConnection, invID, psm.Completed)
	waitState(t, holder, psm.KindConnection, invID, psm.Completed)

	ipw, err := issuer.FindConnectionByInvitation(invID)
	require.NoError(t, err)
	hpw, err := holder.FindConnectionByInvitation(invID)
	require.NoError(t, err)
	return ipw.ConnID(), hpw.ConnID()
}

func register(t *testing.T, issuer *Agent, name string) string {
	t.Helper()
	s, err := issuer.RegisterSchema(name, "1.0", []string{"name"})
	require.NoError(t, err)
	cd, err := issuer.RegisterCredDef(s.ID, "default")
	require.NoError(t, err)
	return cd.ID
}

func issue(t *testing.T, issuer, holder *Agent, connID, credDefID, value string) string {
	t.Helper()
	handle := utils.UUID()
	require.NoError(t, issuer.OfferCredential(ctx, connID, handle, credDefID,
		[]didcomm.CredentialAttribute{{Name: "name", Value: value}}))
	waitState(t, holder, psm.KindIssueCredential, handle, psm.OfferReceived)
	require.NoError(t, holder.AcceptOffer(ctx, handle))
	waitState(t, issuer, psm.KindIssueCredential, handle, psm.Done)
	waitState(t, holder, psm.KindIssueCredential, handle, psm.Done)
	return handle
}

func TestNew(t *testing.T) {
	lb := trans.NewLoopback()
	_, err := New(Config{Label: "no transport"})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = New(Config{Label: "short seed", Seed: []byte{1, 2}, Transport: lb})
	require.ErrorIs(t, err, ErrInvalid)

	seed := []byte("00000000000000000000000000000001")
	a1, err := New(Config{Label: "a1", Seed: seed, Transport: lb})
	require.NoError(t, err)
	a2, err := New(Config{Label: "a2", Seed: seed, Transport: lb})
	require.NoError(t, err)
	require.Equal(t, a1.DID(), a2.DID())
	require.Contains(t, a1.DID(), "did:key:")
}

func TestConnection(t *testing.T) {
	lb := trans.NewLoopback()
	issuer := newAgent(t, lb, "issuer")
	holder := newAgent(t, lb, "holder")

	iConnID, hConnID := connect(t, issuer, holder)
	require.NotEqual(t, iConnID, hConnID)

	ipw, err := psm.GetPairwiseRep(issuer.key(iConnID))
	require.NoError(t, err)
	require.Equal(t, holder.DID(), ipw.TheirDID)
	require.Equal(t, "holder", ipw.TheirLabel)

	hpw, err := psm.GetPairwiseRep(holder.key(hConnID))
	require.NoError(t, err)
	require.Equal(t, issuer.DID(), hpw.TheirDID)
	require.Equal(t, issuer.Endpoint(), hpw.TheirEndpoint)

	_, err = holder.FindConnectionByInvitation("unknown")
	require.ErrorIs(t, err, ErrNoConnection)
}

func TestCreateInvitation_Duplicate(t *testing.T) {
	lb := trans.NewLoopback()
	issuer := newAgent(t, lb, "issuer")

	invID := utils.UUID()
	_, err := issuer.CreateInvitation(ctx, invID, "")
	require.NoError(t, err)
	_, err = issuer.CreateInvitation(ctx, invID, "")
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestIssueCredential(t *testing.T) {
	lb := trans.NewLoopback()
	issuer := newAgent(t, lb, "issuer")
	holder := newAgent(t, lb, "holder")
	iConnID, _ := connect(t, issuer, holder)
	credDefID := register(t, issuer, "issue")

	handle := issue(t, issuer, holder, iConnID, credDefID, "Alice")

	creds, err := holder.Credentials()
	require.NoError(t, err)
	require.Len(t, creds, 1)
	require.Equal(t, handle, creds[0].Nonce)
	v, ok := creds[0].Value("name")
	require.True(t, ok)
	require.Equal(t, "Alice", v)

	mine, err := issuer.Credentials()
	require.NoError(t, err)
	require.Empty(t, mine)

	// accepting again is not allowed
	require.ErrorIs(t, holder.AcceptOffer(ctx, handle), ErrState)
}

func TestAcceptOffer_Cancelled(t *testing.T) {
	lb := trans.NewLoopback()
	issuer := newAgent(t, lb, "issuer")
	holder := newAgent(t, lb, "holder")
	iConnID, _ := connect(t, issuer, holder)
	credDefID := register(t, issuer, "cancelled")

	handle := utils.UUID()
	require.NoError(t, issuer.OfferCredential(ctx, iConnID, handle, credDefID,
		[]didcomm.CredentialAttribute{{Name: "name", Value: "Alice"}}))
	waitState(t, holder, psm.KindIssueCredential, handle, psm.OfferReceived)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, holder.AcceptOffer(cancelled, handle), context.Canceled)

	p, err := holder.Query(ctx, psm.KindIssueCredential, handle)
	require.NoError(t, err)
	require.Equal(t, psm.OfferReceived, p.Sub())
}

func TestOfferCredential_Invalid(t *testing.T) {
	lb := trans.NewLoopback()
	issuer := newAgent(t, lb, "issuer")
	holder := newAgent(t, lb, "holder")
	iConnID, _ := connect(t, issuer, holder)
	credDefID := register(t, issuer, "invalid")

	tests := []struct {
		name      string
		connID    string
		handle    string
		credDefID string
		attrs     []didcomm.CredentialAttribute
		want      error
	}{
		{"empty handle", iConnID, "", credDefID,
			[]didcomm.CredentialAttribute{{Name: "name", Value: "A"}}, ErrInvalid},
		{"unknown cred def", iConnID, utils.UUID(), "unknown",
			[]didcomm.CredentialAttribute{{Name: "name", Value: "A"}}, ErrInvalid},
		{"wrong attribute", iConnID, utils.UUID(), credDefID,
			[]didcomm.CredentialAttribute{{Name: "age", Value: "1"}}, ErrInvalid},
		{"too many attributes", iConnID, utils.UUID(), credDefID,
			[]didcomm.CredentialAttribute{{Name: "name"}, {Name: "name"}}, ErrInvalid},
		{"unknown connection", "unknown", utils.UUID(), credDefID,
			[]didcomm.CredentialAttribute{{Name: "name", Value: "A"}}, ErrNoConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := issuer.OfferCredential(ctx, tt.connID, tt.handle, tt.credDefID, tt.attrs)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPresentProof(t *testing.T) {
	lb := trans.NewLoopback()
	issuer := newAgent(t, lb, "issuer")
	holder := newAgent(t, lb, "holder")
	iConnID, _ := connect(t, issuer, holder)
	credDefID := register(t, issuer, "proof")
	issue(t, issuer, holder, iConnID, credDefID, "Alice")

	handle := utils.UUID()
	require.NoError(t, issuer.RequestProof(ctx, iConnID, handle,
		[]didcomm.ProofAttribute{{Name: "name", CredDefID: credDefID}}))
	waitState(t, holder, psm.KindPresentProof, handle, psm.RequestReceived)

	sel, err := holder.SelectCredentials(ctx, handle)
	require.NoError(t, err)
	require.False(t, sel.IsEmpty())
	require.Equal(t, "Alice", sel.Credentials[0].Value)

	require.NoError(t, holder.AcceptRequest(ctx, handle, sel))
	waitState(t, issuer, psm.KindPresentProof, handle, psm.Done)
	waitState(t, holder, psm.KindPresentProof, handle, psm.Done)

	proof, err := issuer.Proof(handle)
	require.NoError(t, err)
	require.True(t, proof.Verified)
	require.Equal(t, "Alice", proof.Values[0].Value)
}

func TestPresentProof_NoCredential(t *testing.T) {
	lb := trans.NewLoopback()
	issuer := newAgent(t, lb, "issuer")
	holder := newAgent(t, lb, "holder")
	iConnID, _ := connect(t, issuer, holder)

	handle := utils.UUID()
	require.NoError(t, issuer.RequestProof(ctx, iConnID, handle,
		[]didcomm.ProofAttribute{{Name: "name", CredDefID: "unknown"}}))
	waitState(t, holder, psm.KindPresentProof, handle, psm.RequestReceived)

	sel, err := holder.SelectCredentials(ctx, handle)
	require.NoError(t, err)
	require.True(t, sel.IsEmpty())
	require.ErrorIs(t, holder.AcceptRequest(ctx, handle, sel), ErrInvalid)

	p, err := issuer.Query(ctx, psm.KindPresentProof, handle)
	require.NoError(t, err)
	require.Equal(t, psm.RequestSent, p.Sub())
}

func TestPresentProof_Forged(t *testing.T) {
	lb := trans.NewLoopback()
	issuer := newAgent(t, lb, "issuer")
	holder := newAgent(t, lb, "holder")
	iConnID, _ := connect(t, issuer, holder)
	credDefID := register(t, issuer, "forged")
	issue(t, issuer, holder, iConnID, credDefID, "Alice")

	handle := utils.UUID()
	require.NoError(t, issuer.RequestProof(ctx, iConnID, handle,
		[]didcomm.ProofAttribute{{Name: "name", CredDefID: credDefID}}))
	waitState(t, holder, psm.KindPresentProof, handle, psm.RequestReceived)

	sel := didcomm.Selection{Credentials: []didcomm.SelectedCredential{{
		Attribute: "name", CredDefID: credDefID, Value: "Mallory",
	}}}
	require.NoError(t, holder.AcceptRequest(ctx, handle, sel))
	waitState(t, holder, psm.KindPresentProof, handle, psm.Accepted)

	// the verifier stays where it was
	time.Sleep(100 * time.Millisecond)
	p, err := issuer.Query(ctx, psm.KindPresentProof, handle)
	require.NoError(t, err)
	require.Equal(t, psm.RequestSent, p.Sub())
}

func TestQuery_NotFound(t *testing.T) {
	lb := trans.NewLoopback()
	a := newAgent(t, lb, "lonely")

	_, err := a.Query(ctx, psm.KindIssueCredential, utils.UUID())
	require.ErrorIs(t, err, storage.ErrDataNotFound)
}

func TestRegistry(t *testing.T) {
	lb := trans.NewLoopback()
	a := newAgent(t, lb, "registry")

	s, err := a.RegisterSchema("foo", "1.0", []string{"name"})
	require.NoError(t, err)
	require.Equal(t, a.DID()+":2:foo:1.0", s.ID)
	again, err := a.RegisterSchema("foo", "1.0", []string{"name"})
	require.NoError(t, err)
	require.Same(t, s, again)

	cd, err := a.RegisterCredDef(s.ID, "")
	require.NoError(t, err)
	require.Equal(t, a.DID()+":3:CL:"+s.ID+":default", cd.ID)
	got, ok := a.CredDef(cd.ID)
	require.True(t, ok)
	require.Equal(t, cd, got)

	_, err = a.RegisterCredDef("unknown", "default")
	require.ErrorIs(t, err, ErrInvalid)
	_, err = a.RegisterSchema("", "1.0", []string{"name"})
	require.ErrorIs(t, err, ErrInvalid)
}
