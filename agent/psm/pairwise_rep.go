package psm

import (
	"github.com/findy-network/findy-common-go/dto"
)

// PairwiseRep is the connection. The key's nonce is our connection ID, which
// differs from the other end's connection ID.
type PairwiseRep struct {
	StateKey
	InvitationID  string
	TheirDID      string
	TheirLabel    string
	TheirEndpoint string
}

func NewPairwiseRep(d []byte) Rep {
	p := &PairwiseRep{}
	dto.FromGOB(d, p)
	return p
}

func (p *PairwiseRep) Key() StateKey {
	return p.StateKey
}

func (p *PairwiseRep) Data() []byte {
	return dto.ToGOB(p)
}

func (p *PairwiseRep) Type() byte {
	return BucketPairwise
}

func (p *PairwiseRep) ConnID() string {
	return p.Nonce
}
