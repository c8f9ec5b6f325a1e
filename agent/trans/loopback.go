package trans

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Loopback delivers messages in memory. Messages are marshalled like in the
// wire, so the receiver never shares the sender's message.
type Loopback struct {
	lk    sync.RWMutex
	rcvrs map[string]Receiver
}

func NewLoopback() *Loopback {
	return &Loopback{rcvrs: make(map[string]Receiver)}
}

func (l *Loopback) Register(endpoint string, r Receiver) {
	l.lk.Lock()
	defer l.lk.Unlock()
	l.rcvrs[endpoint] = r
}

func (l *Loopback) Unregister(endpoint string) {
	l.lk.Lock()
	defer l.lk.Unlock()
	delete(l.rcvrs, endpoint)
}

func (l *Loopback) Send(ctx context.Context, endpoint string, msg *didcomm.Message) (err error) {
	defer err2.Handle(&err, "loopback send %s", msg.Type)

	l.lk.RLock()
	r, ok := l.rcvrs[endpoint]
	l.lk.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoEndpoint, endpoint)
	}
	try.To(ctx.Err())

	wire := new(didcomm.Message)
	try.To(json.Unmarshal(dto.ToJSONBytes(msg), wire))
	return r.Receive(wire)
}
