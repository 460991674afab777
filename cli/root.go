package cli

import (
	"github.com/joho/godotenv"
	"github.com/opsrelay/opsrelay/pkg/logger"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the opsrelay command tree.
func NewRootCmd() *cobra.Command {
	var logLevel string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "opsrelay",
		Short: "Tool-augmented assistant for terminal operations",
		Long: "opsrelay connects a completion service to a terminal tool server " +
			"and drives tool-augmented conversations from the console, a chat " +
			"platform, or scripts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// A .env file is a convenience for local runs; absence is fine.
			_ = godotenv.Load()
			logger.Setup(logLevel, logJSON)
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"emit logs as JSON")

	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSessionsCmd())
	return cmd
}
