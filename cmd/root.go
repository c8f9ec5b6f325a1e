package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/findy-network/findy-triangle/cmds/triangle"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Every flag can be given as TRIANGLE_<COMMAND>_<FLAG> env variable, e.g.
// TRIANGLE_SERVER_ISSUER_PORT.
const envPrefix = "TRIANGLE"

var rootCmd = &cobra.Command{
	Version: utils.Version,
	Use:     "findy-triangle",
	Short:   "SSI trust triangle demo: issuer, holder and verifier in one process",
	Long: `
findy-triangle runs the issuer and the holder agents of the SSI trust
triangle and connects them at startup. The issuer is the verifier as well.

Start the server first, then register the credential definition and use its
ID to issue and verify:

	findy-triangle server start
	findy-triangle register --schema-name email
	findy-triangle issue --cred-def-id <ID> --holder-name Alice
	findy-triangle verify --cred-def-id <ID>
	`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		triangle.ParseLoggingArgs(globals.logging)
		applyViper(cmd)
	},
}

// Execute runs the command given in the program arguments.
func Execute() {
	if rootCmd.Execute() != nil {
		os.Exit(1)
	}
}

var globals struct {
	cfgFile string
	dryRun  bool
	logging string
}

var rootEnvs = map[string]string{
	"config":  "CONFIG",
	"logging": "LOGGING",
	"dry-run": "DRY_RUN",
}

func init() {
	defer err2.Catch(err2.Err(func(err error) {
		log.Println("root flags:", err)
	}))

	cobra.OnInitialize(readConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globals.cfgFile, "config", "", flagInfo("YAML/JSON/TOML config file", "", rootEnvs["config"]))
	flags.StringVar(&globals.logging, "logging", "-logtostderr=true -v=2", flagInfo("glog flags", "", rootEnvs["logging"]))
	flags.BoolVarP(&globals.dryRun, "dry-run", "n", false, flagInfo("validate the flags only", "", rootEnvs["dry-run"]))

	try.To(viper.BindPFlags(flags))
	try.To(BindEnvs(rootEnvs, ""))
}

// readConfig is run before any command. Env variables and the config file
// override the default flag values, the command line overrides them all.
func readConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	cfgFile := globals.cfgFile
	if cfgFile == "" {
		cfgFile = os.Getenv(envName("", "config"))
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "config file:", err)
		} else if globals.cfgFile != "" {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}
	globals.logging = viper.GetString("logging")
	globals.dryRun = viper.GetBool("dry-run")
}

// BindEnvs binds the flags to their env variables. The cmdName is empty for
// the global flags.
func BindEnvs(envMap map[string]string, cmdName string) (err error) {
	defer err2.Handle(&err, "bind envs")

	for flagKey, env := range envMap {
		try.To(viper.BindEnv(flagKey, envName(cmdName, env)))
	}
	return nil
}

// flagInfo appends the env variable name to the usage text of the flag.
func flagInfo(info, cmdName, env string) string {
	return info + ", " + envName(cmdName, env)
}

func envName(cmdName, env string) string {
	if cmdName == "" {
		return envPrefix + "_" + strings.ToUpper(env)
	}
	return envPrefix + "_" + strings.ToUpper(cmdName) + "_" + env
}

// applyViper copies the viper values to the flags of the command and of all
// of its parents.
func applyViper(cmd *cobra.Command) {
	for c := cmd; c != nil; c = c.Parent() {
		syncFlags(c)
	}
}

func syncFlags(cmd *cobra.Command) {
	defer err2.Catch(err2.Err(func(err error) {
		log.Println(cmd.Name(), "flags:", err)
	}))

	try.To(viper.BindPFlags(cmd.LocalFlags()))
	if cmd.PreRunE != nil {
		try.To(cmd.PreRunE(cmd, nil))
	}
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if v := viper.GetString(f.Name); v != "" && v != f.Value.String() {
			try.To(cmd.LocalFlags().Set(f.Name, v))
		}
	})
}

// SubCmdNeeded is the Run of the parent commands which do nothing alone.
func SubCmdNeeded(cmd *cobra.Command) {
	fmt.Println("Subcommand needed!")
	_ = cmd.Help()
	os.Exit(1)
}
