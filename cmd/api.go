package cmd

import (
	"log"
	"os"

	"github.com/findy-network/findy-triangle/cmds"
	"github.com/findy-network/findy-triangle/cmds/api"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

const defaultBaseAddr = "http://localhost:8080"

var apiEnvs = map[string]string{
	"base-address": "BASE_ADDRESS",
	"schema-name":  "SCHEMA_NAME",
	"cred-def-id":  "CRED_DEF_ID",
	"holder-name":  "HOLDER_NAME",
}

var (
	statusCmd   = api.StatusCmd{}
	registerCmd = api.RegisterCmd{}
	issueCmd    = api.IssueCmd{}
	verifyCmd   = api.VerifyCmd{}
)

// runE returns the cobra run function for the command object.
func runE(c cmds.Command) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) (err error) {
		defer err2.Handle(&err)

		try.To(c.Validate())
		if !globals.dryRun {
			cmd.SilenceUsage = true
			try.To1(c.Exec(os.Stdout))
		}
		return nil
	}
}

func bindAPIEnvs(*cobra.Command, []string) error {
	return BindEnvs(apiEnvs, "API")
}

var statusCobraCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the version and the connection status of the server",
	Long: `
Prints the version of the server and the status of the agent-to-agent
connection between the issuer and the holder.

Example
	findy-triangle status --base-address http://localhost:8080
	`,
	PreRunE: bindAPIEnvs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runE(statusCmd)(cmd, args)
	},
}

var registerCobraCmd = &cobra.Command{
	Use:   "register",
	Short: "Registers the schema and the credential definition",
	Long: `
Registers the schema with the name attribute and the credential definition
for it. The credential definition ID is needed to issue and verify.

Example
	findy-triangle register --schema-name email
	`,
	PreRunE: bindAPIEnvs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runE(registerCmd)(cmd, args)
	},
}

var issueCobraCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issues the credential from the issuer to the holder",
	Long: `
Issues the credential from the issuer to the holder over their connection.

Example
	findy-triangle issue --cred-def-id <ID> --holder-name Alice
	`,
	PreRunE: bindAPIEnvs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runE(issueCmd)(cmd, args)
	},
}

var verifyCobraCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verifies the holder's credential",
	Long: `
The issuer requests the proof of the name attribute restricted to the
credential definition, and the holder presents it.

Example
	findy-triangle verify --cred-def-id <ID>
	`,
	PreRunE: bindAPIEnvs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runE(verifyCmd)(cmd, args)
	},
}

func init() {
	defer err2.Catch(err2.Err(func(err error) {
		log.Println(err)
	}))

	for _, c := range []struct {
		cmd  *cobra.Command
		addr *string
	}{
		{statusCobraCmd, &statusCmd.BaseAddr},
		{registerCobraCmd, &registerCmd.BaseAddr},
		{issueCobraCmd, &issueCmd.BaseAddr},
		{verifyCobraCmd, &verifyCmd.BaseAddr},
	} {
		c.cmd.Flags().StringVar(c.addr, "base-address", defaultBaseAddr, flagInfo("base address of the server", "API", apiEnvs["base-address"]))
		rootCmd.AddCommand(c.cmd)
	}

	registerCobraCmd.Flags().StringVar(&registerCmd.SchemaName, "schema-name", "", flagInfo("schema name", "API", apiEnvs["schema-name"]))
	issueCobraCmd.Flags().StringVar(&issueCmd.CredDefID, "cred-def-id", "", flagInfo("credential definition ID", "API", apiEnvs["cred-def-id"]))
	issueCobraCmd.Flags().StringVar(&issueCmd.HolderName, "holder-name", "", flagInfo("holder name, empty for the default", "API", apiEnvs["holder-name"]))
	verifyCobraCmd.Flags().StringVar(&verifyCmd.CredDefID, "cred-def-id", "", flagInfo("credential definition ID", "API", apiEnvs["cred-def-id"]))
}
