package triangle

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/findy-network/findy-triangle/agent/psm"
	"github.com/findy-network/findy-triangle/agent/utils"
	grpcserver "github.com/findy-network/findy-triangle/grpc/server"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const runTimeout = 20 * time.Second

func freePorts(t *testing.T, n int) []uint {
	t.Helper()
	ports := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		lis, err := net.Listen("tcp", "localhost:0")
		require.NoError(t, err)
		defer lis.Close()
		ports = append(ports, uint(lis.Addr().(*net.TCPAddr).Port))
	}
	return ports
}

func newCmd(t *testing.T) *Cmd {
	t.Helper()
	ports := freePorts(t, 4)
	c := DefaultValues
	c.ServerPort = ports[0]
	c.IssuerPort = ports[1]
	c.HolderPort = ports[2]
	c.GRPCPort = int(ports[3])
	c.PsmDb = filepath.Join(t.TempDir(), "triangle.bolt")
	c.ExchangeTimeout = 10 * time.Second
	require.NoError(t, c.Validate())
	return &c
}

func runAsync(c *Cmd) <-chan error {
	errs := make(chan error, 1)
	go func() {
		errs <- c.Run(io.Discard)
	}()
	return errs
}

func TestCmd_SetupAndRun(t *testing.T) {
	c := newCmd(t)
	require.NoError(t, c.Setup(io.Discard))
	defer c.closeAll()

	errs := runAsync(c)

	require.Eventually(t, c.t.Connected, runTimeout, 50*time.Millisecond)

	statusURL := fmt.Sprintf("http://localhost:%d/connection-status", c.ServerPort)
	require.Eventually(t, func() bool {
		resp, err := http.Get(statusURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, runTimeout, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	conn, err := grpc.DialContext(ctx, fmt.Sprintf("localhost:%d", c.GRPCPort),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	health := healthpb.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		r, err := health.Check(ctx,
			&healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})
		return err == nil && r.Status == healthpb.HealthCheckResponse_SERVING
	}, runTimeout, 50*time.Millisecond)

	c.Shutdown()
	c.Shutdown()

	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(runTimeout):
		t.Fatal("Run didn't return after Shutdown")
	}
}

func TestCmd_Run_APIPortInUse(t *testing.T) {
	c := newCmd(t)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", c.ServerPort))
	require.NoError(t, err)
	defer lis.Close()

	require.NoError(t, c.Setup(io.Discard))
	defer c.closeAll()

	select {
	case err := <-runAsync(c):
		require.Error(t, err)
	case <-time.After(runTimeout):
		t.Fatal("Run didn't return when the API listener failed")
	}
}

func TestCmd_cleanup(t *testing.T) {
	c := newCmd(t)
	require.NoError(t, psm.Open(c.PsmDb, ""))
	defer psm.Close()

	newPSM := func(states ...psm.SubState) *psm.PSM {
		p := &psm.PSM{
			Key:  psm.StateKey{DID: "did:key:cleanup", Nonce: utils.UUID()},
			Kind: psm.KindIssueCredential,
		}
		for _, s := range states {
			require.NoError(t, p.Advance(s))
		}
		require.NoError(t, psm.AddPSM(p))
		return p
	}
	ready := newPSM(psm.OfferSent, psm.Done)
	pending := newPSM(psm.OfferSent)

	c.RecordMaxAge = 0
	c.cleanup()

	_, err := psm.GetPSM(ready.Key)
	require.ErrorIs(t, err, storage.ErrDataNotFound)
	_, err = psm.GetPSM(pending.Key)
	require.NoError(t, err)
}
