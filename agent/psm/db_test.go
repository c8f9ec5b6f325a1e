package psm

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

const (
	dbPath       = "db_test.bolt"
	cipherDBPath = "db_cipher_test.bolt"
	testKey      = "15308490f1e4026284594dd08d31291bc8ef2aeac730d0daf6ff87bb92d4336c"

	mockStateDID   = "did:key:TEST"
	mockStateNonce = "1234"
)

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

	try.To(Open(dbPath, ""))
}

func tearDown() {
	Close()

	os.Remove(dbPath)
	os.Remove(cipherDBPath)
}

func testPSM(nonce string, kind Kind, states ...SubState) *PSM {
	p := &PSM{
		Key:  StateKey{DID: mockStateDID, Nonce: nonce},
		Kind: kind,
	}
	for _, s := range states {
		try.To(p.Advance(s))
	}
	return p
}

func Test_addPSM(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	p := testPSM(mockStateNonce, KindIssueCredential, OfferSent)
	assert.NoError(AddPSM(p))

	got, err := GetPSM(StateKey{DID: mockStateDID, Nonce: mockStateNonce})
	assert.NoError(err)
	assert.DeepEqual(p, got)

	_, err = FindPSM(KindPresentProof, p.Key)
	assert.That(errors.Is(err, storage.ErrDataNotFound))
	got, err = FindPSM(KindIssueCredential, p.Key)
	assert.NoError(err)
	assert.Equal(got.Sub(), OfferSent)

	ready, err := IsPSMReady(p.Key)
	assert.NoError(err)
	assert.That(!ready)
}

func Test_getPSMNotFound(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := GetPSM(StateKey{DID: mockStateDID, Nonce: "not-there"})
	assert.Error(err)
	assert.That(errors.Is(err, storage.ErrDataNotFound))
}

func Test_AllPSM(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	p1 := testPSM("all-1", KindConnection, Invited)
	p2 := testPSM("all-2", KindConnection, Invited, Requested, Completed)
	p3 := testPSM("all-3", KindConnection, Invited)
	p3.Key.DID = "did:key:OTHER"
	for _, p := range []*PSM{p1, p2, p3} {
		assert.NoError(AddPSM(p))
	}

	all, err := AllPSM(mockStateDID, nil)
	assert.NoError(err)
	found := 0
	for _, p := range all {
		assert.Equal(p.Key.DID, mockStateDID)
		if p.Key.Nonce == "all-1" || p.Key.Nonce == "all-2" {
			found++
		}
	}
	assert.Equal(found, 2)

	future := time.Now().Add(time.Hour).UnixNano()
	all, err = AllPSM(mockStateDID, &future)
	assert.NoError(err)
	assert.Equal(len(all), 0)
}

func Test_addRep(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	key := StateKey{DID: mockStateDID, Nonce: "cred-1"}
	rep := &IssueCredRep{
		StateKey:  key,
		ConnID:    "conn-1",
		CredDefID: "cred-def-1",
		Attributes: []didcomm.CredentialAttribute{
			{Name: "name", Value: "Alice"},
		},
	}
	assert.NoError(AddRep(rep))

	got, err := GetIssueCredRep(key)
	assert.NoError(err)
	assert.DeepEqual(rep, got)
	v, ok := got.Value("name")
	assert.That(ok)
	assert.Equal(v, "Alice")

	pw := &PairwiseRep{
		StateKey:     StateKey{DID: mockStateDID, Nonce: "conn-1"},
		InvitationID: "inv-1",
		TheirDID:     "did:key:THEIR",
	}
	assert.NoError(AddRep(pw))
	reps, err := AllReps(BucketPairwise, mockStateDID)
	assert.NoError(err)
	assert.That(len(reps) >= 1)
	assert.Equal(reps[0].(*PairwiseRep).ConnID(), "conn-1")

	_, err = GetPresentProofRep(key)
	assert.That(errors.Is(err, storage.ErrDataNotFound))
}

func Test_RmReadyBefore(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ready := testPSM("rm-1", KindIssueCredential, OfferSent, Accepted, Done)
	pending := testPSM("rm-2", KindIssueCredential, OfferSent)
	assert.NoError(AddPSM(ready))
	assert.NoError(AddPSM(pending))
	assert.NoError(AddRep(&IssueCredRep{StateKey: ready.Key}))

	count, err := RmReadyBefore(time.Now().Add(time.Minute).UnixNano())
	assert.NoError(err)
	assert.That(count >= 1)

	_, err = GetPSM(ready.Key)
	assert.That(errors.Is(err, storage.ErrDataNotFound))
	_, err = GetIssueCredRep(ready.Key)
	assert.That(errors.Is(err, storage.ErrDataNotFound))
	_, err = GetPSM(pending.Key)
	assert.NoError(err)
}

func Test_cipher(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	defer func() {
		try.To(Open(dbPath, ""))
	}()
	assert.NoError(Open(cipherDBPath, testKey))

	p := testPSM("cipher-1", KindPresentProof, RequestSent)
	assert.NoError(AddPSM(p))
	got, err := GetPSM(p.Key)
	assert.NoError(err)
	assert.DeepEqual(p, got)

	assert.Error(Open(cipherDBPath, "not-hex"))
}
