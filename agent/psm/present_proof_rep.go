package psm

import (
	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-triangle/agent/didcomm"
)

type PresentProofRep struct {
	StateKey
	ConnID     string
	Attributes []didcomm.ProofAttribute
	Values     []didcomm.ProofValue
	Verified   bool
}

func NewPresentProofRep(d []byte) Rep {
	p := &PresentProofRep{}
	dto.FromGOB(d, p)
	return p
}

func (rep *PresentProofRep) Key() StateKey {
	return rep.StateKey
}

func (rep *PresentProofRep) Data() []byte {
	return dto.ToGOB(rep)
}

func (rep *PresentProofRep) Type() byte {
	return BucketPresentProof
}
