/*
Package didcomm offers the message envelope and the protocol data types shared
by the agents of the trust triangle. The messages are simplified versions of
the Aries DIDExchange, issue-credential and present-proof protocol messages.
Crypto is limited to signing the envelope with the sender's did:key.
*/
package didcomm

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"strings"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/hyperledger/aries-framework-go/pkg/vdr/fingerprint"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

const (
	ConnectionRequest  = "https://didcomm.org/didexchange/1.0/request"
	ConnectionResponse = "https://didcomm.org/didexchange/1.0/response"
	ConnectionComplete = "https://didcomm.org/didexchange/1.0/complete"

	CredentialOffer   = "https://didcomm.org/issue-credential/1.0/offer-credential"
	CredentialRequest = "https://didcomm.org/issue-credential/1.0/request-credential"
	CredentialIssue   = "https://didcomm.org/issue-credential/1.0/issue-credential"

	PresentationRequest = "https://didcomm.org/present-proof/1.0/request-presentation"
	Presentation        = "https://didcomm.org/present-proof/1.0/presentation"
	PresentationAck     = "https://didcomm.org/present-proof/1.0/ack"
)

const didKeyPrefix = "did:key:"

var (
	ErrSignature = errors.New("message signature verification failed")
	ErrSender    = errors.New("unsupported sender DID")
)

// Thread is the ~thread decorator. ID is the exchange handle both ends use.
type Thread struct {
	ID  string `json:"thid,omitempty"`
	PID string `json:"pthid,omitempty"`
}

// NewThread returns thread where parent ID is set only when it differs from
// the ID.
func NewThread(ID, PID string) *Thread {
	realPID := ""
	if ID != PID {
		realPID = PID
	}
	return &Thread{ID: ID, PID: realPID}
}

type Message struct {
	ID        string          `json:"@id"`
	Type      string          `json:"@type"`
	Thread    *Thread         `json:"~thread,omitempty"`
	From      string          `json:"from"`
	Body      json.RawMessage `json:"body,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

// NewMessage builds the message with JSON marshalled body.
func NewMessage(id, t, thID, from string, body interface{}) *Message {
	return &Message{
		ID:     id,
		Type:   t,
		Thread: NewThread(thID, ""),
		From:   from,
		Body:   dto.ToJSONBytes(body),
	}
}

func (m *Message) ThreadID() string {
	if m.Thread == nil || m.Thread.ID == "" {
		return m.ID
	}
	return m.Thread.ID
}

// Protocol returns the protocol part of the message type, e.g.
// https://didcomm.org/didexchange/1.0
func (m *Message) Protocol() string {
	i := strings.LastIndex(m.Type, "/")
	if i < 0 {
		return m.Type
	}
	return m.Type[:i]
}

// Decode unmarshals the body to v. Bodies come from the network, so we return
// errors instead of panicking.
func (m *Message) Decode(v interface{}) (err error) {
	defer err2.Handle(&err, "decode %s", m.Type)
	try.To(json.Unmarshal(m.Body, v))
	return nil
}

func (m *Message) signingInput() []byte {
	return []byte(m.ID + "|" + m.Type + "|" + m.ThreadID() + "|" + m.From + "|" + string(m.Body))
}

// Sign signs the message with sender's key. Sender is the From field.
func (m *Message) Sign(key ed25519.PrivateKey) {
	m.Signature = base58.Encode(ed25519.Sign(key, m.signingInput()))
}

// Verify checks that the message is signed by the did:key in the From field.
func (m *Message) Verify() (err error) {
	defer err2.Handle(&err, "verify %s", m.ID)

	if !strings.HasPrefix(m.From, didKeyPrefix) {
		return ErrSender
	}
	pubKey, _ := try.To2(fingerprint.PubKeyFromFingerprint(
		strings.TrimPrefix(m.From, didKeyPrefix)))
	sig := try.To1(base58.Decode(m.Signature))
	if len(pubKey) != ed25519.PublicKeySize ||
		!ed25519.Verify(pubKey, m.signingInput(), sig) {
		return ErrSignature
	}
	return nil
}
