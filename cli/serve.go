package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsrelay/opsrelay/engine/terminal"
	"github.com/opsrelay/opsrelay/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		addr           string
		baseURL        string
		startDir       string
		stdio          bool
		commandTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the terminal tool server",
		Long: "Exposes run_terminal_command, get_system_info, read_file, and " +
			"write_file as MCP tools over SSE (or stdio with --stdio). Each " +
			"connected session keeps its own working directory.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := terminal.NewServer(terminal.ServerConfig{
				BaseURL:        baseURL,
				StartDir:       startDir,
				CommandTimeout: commandTimeout,
			})
			if err != nil {
				return err
			}
			if stdio {
				return srv.ServeStdio()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logger.ContextWithLogger(ctx, logger.GetDefault())

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.ServeSSE(ctx, addr) })
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "SSE listen address")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "externally visible base URL of the SSE endpoint")
	cmd.Flags().StringVar(&startDir, "start-dir", "", "working directory new sessions begin in (defaults to the current directory)")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "serve over stdin/stdout instead of SSE")
	cmd.Flags().DurationVar(&commandTimeout, "command-timeout", 30*time.Second, "per-command execution timeout")
	return cmd
}
