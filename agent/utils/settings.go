package utils

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
)

const (
	// ExchangeTimeout is the default time to wait one exchange to reach its
	// terminal state at both ends.
	ExchangeTimeout = 30 * time.Second

	// HTTPReqTimeout is used for the agent to agent message delivery.
	HTTPReqTimeout = 10 * time.Second
)

var Settings = &Hub{}

type Hub struct {
	l sync.RWMutex

	hostAddr    string // host name of the server seen by the other agent
	versionInfo string // version number etc. in free format as a string
	serverPort  uint   // port of the demo API
	issuerPort  uint   // inbound transport port of the issuer agent
	holderPort  uint   // inbound transport port of the holder agent

	exchangeTimeout time.Duration // how long coordinator waits for both ends
	timeout         time.Duration // timeout setting for http requests

	localTestMode bool // tells if are running unit tests
}

func (h *Hub) LocalTestMode() bool {
	h.l.RLock()
	defer h.l.RUnlock()
	return h.localTestMode
}

func (h *Hub) SetLocalTestMode(localTestMode bool) {
	h.l.Lock()
	defer h.l.Unlock()
	h.localTestMode = localTestMode
}

// SetTimeout sets the default timeout for HTTP requests.
func (h *Hub) SetTimeout(to time.Duration) {
	h.l.Lock()
	defer h.l.Unlock()
	h.timeout = to
}

func (h *Hub) Timeout() time.Duration {
	h.l.RLock()
	defer h.l.RUnlock()
	if h.timeout == 0 {
		return HTTPReqTimeout
	}
	return h.timeout
}

// SetExchangeTimeout sets the deadline of the single exchange, e.g. the
// credential issuing. Zero restores the default.
func (h *Hub) SetExchangeTimeout(to time.Duration) {
	h.l.Lock()
	defer h.l.Unlock()
	h.exchangeTimeout = to
}

func (h *Hub) ExchangeTimeout() time.Duration {
	h.l.RLock()
	defer h.l.RUnlock()
	if h.exchangeTimeout == 0 {
		return ExchangeTimeout
	}
	return h.exchangeTimeout
}

// SetVersionInfo sets current version info of this service. The info is shown
// in the version API call.
func (h *Hub) SetVersionInfo(info string) {
	h.l.Lock()
	defer h.l.Unlock()
	h.versionInfo = info
}

func (h *Hub) VersionInfo() string {
	h.l.RLock()
	defer h.l.RUnlock()
	if h.versionInfo == "" {
		return "findy-triangle v. " + Version
	}
	return h.versionInfo
}

// SetHostAddr sets current host name of this service. The host name is used in
// the agent endpoints and invitations.
func (h *Hub) SetHostAddr(ipName string) {
	h.l.Lock()
	defer h.l.Unlock()
	h.hostAddr = ipName
}

func (h *Hub) HostAddr() string {
	h.l.RLock()
	defer h.l.RUnlock()
	if h.hostAddr == "" && glog.V(3) {
		glog.Info("warning host address is empty")
	}
	return h.hostAddr
}

func (h *Hub) SetPorts(server, issuer, holder uint) {
	h.l.Lock()
	defer h.l.Unlock()
	h.serverPort, h.issuerPort, h.holderPort = server, issuer, holder
}

func (h *Hub) ServerPort() uint {
	h.l.RLock()
	defer h.l.RUnlock()
	return h.serverPort
}

func (h *Hub) IssuerPort() uint {
	h.l.RLock()
	defer h.l.RUnlock()
	return h.issuerPort
}

func (h *Hub) HolderPort() uint {
	h.l.RLock()
	defer h.l.RUnlock()
	return h.holderPort
}

// Endpoint builds the inbound transport address for the port, e.g.
// http://localhost:8081.
func (h *Hub) Endpoint(port uint) string {
	return fmt.Sprintf("http://%s:%d", h.HostAddr(), port)
}
