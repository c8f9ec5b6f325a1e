package cmd

import (
	"log"
	"os"

	"github.com/findy-network/findy-triangle/cmds/triangle"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

// ServerCmd represents the server command
var ServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Parent command for starting the demo server",
	Long: `
Parent command for starting the demo server
	`,
	Run: func(cmd *cobra.Command, args []string) {
		SubCmdNeeded(cmd)
	},
}

var serverStartEnvs = map[string]string{
	"host-address":      "HOST_ADDRESS",
	"server-port":       "SERVER_PORT",
	"issuer-port":       "ISSUER_PORT",
	"holder-port":       "HOLDER_PORT",
	"psm-database-file": "PSM_DATABASE_FILE",
	"psm-database-key":  "PSM_DATABASE_KEY",
	"reset-data":        "RESET_DATA",
	"exchange-timeout":  "EXCHANGE_TIMEOUT",
	"http-timeout":      "HTTP_TIMEOUT",
	"grpc-port":         "GRPC_PORT",
	"cleanup-interval":  "CLEANUP_INTERVAL",
	"record-max-age":    "RECORD_MAX_AGE",
}

// startServerCmd represents the server start subcommand
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Command for starting the demo server",
	Long: `
Starts the issuer and the holder agents, connects them and serves the demo
API until the process is stopped.

Example
	findy-triangle server start \
		--host-address localhost \
		--server-port 8080 \
		--issuer-port 8081 \
		--holder-port 8082
	`,
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		return BindEnvs(serverStartEnvs, "SERVER")
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Handle(&err)

		try.To(startCmd.Validate())
		if !globals.dryRun {
			cmd.SilenceUsage = true
			try.To1(startCmd.Exec(os.Stdout))
		}
		return nil
	},
}

var startCmd = triangle.DefaultValues

func init() {
	defer err2.Catch(err2.Err(func(err error) {
		log.Println(err)
	}))

	startCmd.VersionInfo = "findy-triangle v. " + rootCmd.Version
	d := triangle.DefaultValues

	flags := startServerCmd.Flags()
	flags.StringVar(&startCmd.HostAddr, "host-address", d.HostAddr, flagInfo("host address seen by the agents", ServerCmd.Name(), serverStartEnvs["host-address"]))
	flags.UintVar(&startCmd.ServerPort, "server-port", d.ServerPort, flagInfo("API server port", ServerCmd.Name(), serverStartEnvs["server-port"]))
	flags.UintVar(&startCmd.IssuerPort, "issuer-port", d.IssuerPort, flagInfo("issuer agent's inbound port", ServerCmd.Name(), serverStartEnvs["issuer-port"]))
	flags.UintVar(&startCmd.HolderPort, "holder-port", d.HolderPort, flagInfo("holder agent's inbound port", ServerCmd.Name(), serverStartEnvs["holder-port"]))
	flags.StringVar(&startCmd.PsmDb, "psm-database-file", d.PsmDb, flagInfo("state machine database's filename", ServerCmd.Name(), serverStartEnvs["psm-database-file"]))
	flags.StringVar(&startCmd.PsmKey, "psm-database-key", "", flagInfo("state machine database's hex encoded AES key", ServerCmd.Name(), serverStartEnvs["psm-database-key"]))
	flags.BoolVar(&startCmd.ResetData, "reset-data", false, flagInfo("remove the state machine database at startup", ServerCmd.Name(), serverStartEnvs["reset-data"]))
	flags.DurationVar(&startCmd.ExchangeTimeout, "exchange-timeout", d.ExchangeTimeout, flagInfo("single exchange timeout", ServerCmd.Name(), serverStartEnvs["exchange-timeout"]))
	flags.DurationVar(&startCmd.HTTPTimeout, "http-timeout", d.HTTPTimeout, flagInfo("agent to agent http timeout", ServerCmd.Name(), serverStartEnvs["http-timeout"]))
	flags.IntVar(&startCmd.GRPCPort, "grpc-port", d.GRPCPort, flagInfo("grpc health server port, 0 disables", ServerCmd.Name(), serverStartEnvs["grpc-port"]))
	flags.DurationVar(&startCmd.CleanupInterval, "cleanup-interval", d.CleanupInterval, flagInfo("interval of removing old records, 0 disables", ServerCmd.Name(), serverStartEnvs["cleanup-interval"]))
	flags.DurationVar(&startCmd.RecordMaxAge, "record-max-age", d.RecordMaxAge, flagInfo("max age of ready records", ServerCmd.Name(), serverStartEnvs["record-max-age"]))

	ServerCmd.AddCommand(startServerCmd)
	rootCmd.AddCommand(ServerCmd)
}
