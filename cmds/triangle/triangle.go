/*
Package triangle is the server command of the demo. It starts the issuer and
the holder with their inbound transports, connects them, and serves the API
until the process is stopped.
*/
package triangle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/findy-network/findy-triangle/agent/exchange"
	"github.com/findy-network/findy-triangle/agent/psm"
	"github.com/findy-network/findy-triangle/agent/ssi"
	"github.com/findy-network/findy-triangle/agent/trans"
	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/findy-network/findy-triangle/cmds"
	grpcserver "github.com/findy-network/findy-triangle/grpc/server"
	"github.com/findy-network/findy-triangle/server"
	"github.com/go-co-op/gocron"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"golang.org/x/sync/errgroup"
)

type Cmd struct {
	HostAddr    string
	ServerPort  uint
	IssuerPort  uint
	HolderPort  uint
	PsmDb       string
	PsmKey      string
	ResetData   bool
	VersionInfo string

	ExchangeTimeout time.Duration
	HTTPTimeout     time.Duration
	GRPCPort        int

	CleanupInterval time.Duration
	RecordMaxAge    time.Duration

	t        *server.Triangle
	api      *server.Server
	inbound  []*trans.Server
	health   *grpcserver.Health
	cron     *gocron.Scheduler
	stopOnce *sync.Once
}

var DefaultValues = Cmd{
	HostAddr:        "localhost",
	ServerPort:      8080,
	IssuerPort:      8081,
	HolderPort:      8082,
	PsmDb:           "findy-triangle.bolt",
	ExchangeTimeout: utils.ExchangeTimeout,
	HTTPTimeout:     utils.HTTPReqTimeout,
	GRPCPort:        50051,
	CleanupInterval: time.Hour,
	RecordMaxAge:    24 * time.Hour,
}

func (c *Cmd) Validate() error {
	if c.HostAddr == "" {
		return errors.New("host address cannot be empty")
	}
	for _, p := range []struct {
		name string
		port uint
	}{
		{"server", c.ServerPort},
		{"issuer", c.IssuerPort},
		{"holder", c.HolderPort},
	} {
		if err := cmds.ValidatePort(p.name, p.port); err != nil {
			return err
		}
	}
	if c.IssuerPort == c.HolderPort || c.ServerPort == c.IssuerPort ||
		c.ServerPort == c.HolderPort {
		return errors.New("server, issuer and holder ports must differ")
	}
	if c.PsmDb == "" {
		return errors.New("psm database location must be given")
	}
	if err := cmds.ValidateKey(c.PsmKey); err != nil {
		return err
	}
	if c.ExchangeTimeout <= 0 {
		return errors.New("exchange timeout must be positive")
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("grpc port %d", c.GRPCPort)
	}
	if c.CleanupInterval < time.Minute && c.CleanupInterval != 0 {
		return errors.New("cleanup interval must be at least one minute")
	}
	return nil
}

func (c *Cmd) Exec(w io.Writer) (r cmds.Result, err error) {
	defer err2.Handle(&err)

	try.To(c.Setup(w))
	defer c.closeAll()

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		glog.V(1).Infoln("stopping:", ctx.Err())
		c.Shutdown()
	}()

	try.To(c.Run(w))
	return nil, nil
}

// Setup opens the database, creates the agents and starts their inbound
// transports.
func (c *Cmd) Setup(w io.Writer) (err error) {
	defer err2.Handle(&err, "setup")

	c.printStartupArgs(w)
	c.setRuntimeSettings()
	if c.ResetData {
		glog.V(1).Infoln("reset psm database", c.PsmDb)
		if err := os.Remove(c.PsmDb); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	try.To(psm.Open(c.PsmDb, c.PsmKey))

	tr := trans.NewHTTP()
	issuer := try.To1(ssi.New(ssi.Config{
		Label:     "issuer",
		Endpoint:  utils.Settings.Endpoint(c.IssuerPort),
		Transport: tr,
	}))
	holder := try.To1(ssi.New(ssi.Config{
		Label:     "holder",
		Endpoint:  utils.Settings.Endpoint(c.HolderPort),
		Transport: tr,
	}))
	c.inbound = []*trans.Server{
		trans.NewServer(c.IssuerPort, issuer),
		trans.NewServer(c.HolderPort, holder),
	}
	for _, s := range c.inbound {
		go func(s *trans.Server) {
			if err := s.ListenAndServe(); err != nil {
				glog.Errorln("inbound transport:", err)
			}
		}(s)
	}

	c.t = &server.Triangle{
		Issuer:      issuer,
		Holder:      holder,
		Coordinator: exchange.NewCoordinator(c.ExchangeTimeout),
	}
	c.api = server.New(c.ServerPort, c.t)
	if c.GRPCPort != 0 {
		c.health = grpcserver.NewHealth(c.GRPCPort, c.t.Connected)
	}
	c.stopOnce = new(sync.Once)
	return nil
}

// Run connects the agents and serves the API. It blocks until Shutdown is
// called or one of the servers fails. In the latter case the rest of the
// servers are stopped and the error is returned.
func (c *Cmd) Run(w io.Writer) (err error) {
	defer err2.Handle(&err, "run")

	try.To(c.t.Connect(context.Background(), utils.Settings.Endpoint(c.IssuerPort)))
	cmds.Fprintln(w, "Agent-to-agent connection is up!")

	g, gCtx := errgroup.WithContext(context.Background())
	go func() {
		// done when Wait returns or the first server fails
		<-gCtx.Done()
		c.Shutdown()
	}()
	if c.health != nil {
		c.health.Update()
		g.Go(c.health.ListenAndServe)
	}
	c.startCleanupTasks()

	cmds.Fprintf(w, "SSI trust triangle demo app listening on port %d!\n", c.ServerPort)
	g.Go(c.api.ListenAndServe)
	return g.Wait()
}

func (c *Cmd) startCleanupTasks() {
	c.cron = gocron.NewScheduler(time.Now().Location())
	if c.CleanupInterval != 0 {
		minutes := int(c.CleanupInterval / time.Minute)
		glog.V(1).Infof("records older than %v are removed every %d minutes",
			c.RecordMaxAge, minutes)
		_, err := c.cron.Every(minutes).Minutes().Do(c.cleanup)
		if err != nil {
			glog.Warningln("cleanup start error:", err)
		}
	}
	if c.health != nil {
		_, err := c.cron.Every(1).Minute().Do(c.health.Update)
		if err != nil {
			glog.Warningln("health update start error:", err)
		}
	}
	c.cron.StartAsync()
}

func (c *Cmd) cleanup() {
	ts := time.Now().Add(-c.RecordMaxAge).UnixNano()
	count, err := psm.RmReadyBefore(ts)
	if err != nil {
		glog.Errorln("record cleanup:", err)
		return
	}
	glog.V(1).Infof("%d old records removed", count)
}

// Shutdown stops the servers and makes Run to return. It can be called many
// times.
func (c *Cmd) Shutdown() {
	c.stopOnce.Do(c.stopServers)
}

func (c *Cmd) stopServers() {
	ctx, cancel := context.WithTimeout(context.Background(), utils.HTTPReqTimeout)
	defer cancel()

	if c.health != nil {
		c.health.Stop()
	}
	if err := c.api.Shutdown(ctx); err != nil {
		glog.Warningln("api shutdown:", err)
	}
}

func (c *Cmd) printStartupArgs(w io.Writer) {
	cmds.Fprintln(w,
		"State machine db path:", c.PsmDb,
		"\nHost address:", c.HostAddr,
		"\nServer port:", c.ServerPort,
		"\nIssuer port:", c.IssuerPort,
		"\nHolder port:", c.HolderPort)
}

func (c *Cmd) setRuntimeSettings() {
	utils.Settings.SetHostAddr(c.HostAddr)
	utils.Settings.SetPorts(c.ServerPort, c.IssuerPort, c.HolderPort)
	utils.Settings.SetExchangeTimeout(c.ExchangeTimeout)
	utils.Settings.SetTimeout(c.HTTPTimeout)
	if c.VersionInfo != "" {
		utils.Settings.SetVersionInfo(c.VersionInfo)
	}
}

func (c *Cmd) closeAll() {
	if c.cron != nil {
		c.cron.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), utils.HTTPReqTimeout)
	defer cancel()
	for _, s := range c.inbound {
		if err := s.Shutdown(ctx); err != nil {
			glog.Warningln("inbound shutdown:", err)
		}
	}
	psm.Close()
}
