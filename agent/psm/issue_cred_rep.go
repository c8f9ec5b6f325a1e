package psm

import (
	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-triangle/agent/didcomm"
)

// IssueCredRep carries the credential exchange data. When the holder's PSM
// is Done the rep is the held credential, and its handle is the credential
// ID.
type IssueCredRep struct {
	StateKey
	ConnID     string
	CredDefID  string
	Attributes []didcomm.CredentialAttribute
}

func NewIssueCredRep(d []byte) Rep {
	p := &IssueCredRep{}
	dto.FromGOB(d, p)
	return p
}

func (rep *IssueCredRep) Key() StateKey {
	return rep.StateKey
}

func (rep *IssueCredRep) Data() []byte {
	return dto.ToGOB(rep)
}

func (rep *IssueCredRep) Type() byte {
	return BucketIssueCred
}

// Value returns the value of the named attribute.
func (rep *IssueCredRep) Value(name string) (string, bool) {
	for _, a := range rep.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}
