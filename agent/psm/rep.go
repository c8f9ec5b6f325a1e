package psm

import (
	"sync"
)

const (
	BucketPSM byte = 0 + iota
	BucketPairwise
	BucketIssueCred
	BucketPresentProof
)

// Rep is the protocol specific representative of the PSM. The PSM tells the
// state of the exchange, the Rep carries its data.
type Rep interface {
	Key() StateKey
	Data() []byte
	Type() byte
}

// Factor builds the Rep from the data returned by Data().
type Factor func(d []byte) Rep

type Factory struct {
	l        sync.RWMutex
	creators map[byte]Factor
}

// Creator is the Rep factory. The Rep packages register their factors here.
var Creator = &Factory{creators: make(map[byte]Factor)}

func (f *Factory) Add(t byte, factor Factor) {
	f.l.Lock()
	defer f.l.Unlock()
	f.creators[t] = factor
}

func (f *Factory) NewRep(t byte, d []byte) Rep {
	f.l.RLock()
	defer f.l.RUnlock()
	factor, ok := f.creators[t]
	if !ok {
		return nil
	}
	return factor(d)
}

func init() {
	Creator.Add(BucketPairwise, NewPairwiseRep)
	Creator.Add(BucketIssueCred, NewIssueCredRep)
	Creator.Add(BucketPresentProof, NewPresentProofRep)
}

func bucketForKind(k Kind) byte {
	switch k {
	case KindConnection:
		return BucketPairwise
	case KindIssueCredential:
		return BucketIssueCred
	case KindPresentProof:
		return BucketPresentProof
	default:
		return BucketPSM
	}
}
