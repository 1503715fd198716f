// Package cmd provides the Cobra commands for the relschema demo CLI. The
// CLI exists to exercise the compiler end to end: it is the only place that
// reads configuration or opens sockets — the core packages never do.
package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "relschema",
	Short: "relschema - serve a GraphQL API compiled from a relational schema",
	Long: `relschema compiles a declarative relational schema into a GraphQL API:
per-table query and mutation fields, filter/order/pagination arguments, and
nested relation fetching pushed down into the database executor.

Get started:
  relschema serve             Serve the built-in demo schema in memory
  relschema serve --dsn ...   Serve against a live database`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debug || viper.GetBool("debug") {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")

	viper.SetEnvPrefix("RELSCHEMA")
	_ = viper.BindEnv("listen") // RELSCHEMA_LISTEN
	_ = viper.BindEnv("dialect")
	_ = viper.BindEnv("dsn")
	_ = viper.BindEnv("debug")

	rootCmd.AddCommand(serveCmd)
}
