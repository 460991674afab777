package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/opsrelay/opsrelay/engine/infra/sqlite"
	"github.com/opsrelay/opsrelay/pkg/config"
	"github.com/opsrelay/opsrelay/pkg/logger"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and maintain the session store",
	}
	cmd.AddCommand(newSessionsStatsCmd())
	cmd.AddCommand(newSessionsExportCmd())
	cmd.AddCommand(newSessionsCleanupCmd())
	return cmd
}

func openStore(ctx context.Context) (*sqlite.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return sqlite.NewStore(ctx, &sqlite.Config{Path: cfg.Store.Path})
}

func newSessionsStatsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage counts for recent activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logger.ContextWithLogger(cmd.Context(), logger.GetDefault())
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			since := time.Now().UTC().AddDate(0, 0, -days)
			stats, err := store.Stats(ctx, since)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Activity over the last %d days:\n", days)
			fmt.Fprintf(out, "  Sessions:   %d\n", stats.Sessions)
			fmt.Fprintf(out, "  Messages:   %d\n", stats.Messages)
			fmt.Fprintf(out, "  Tool calls: %d\n", stats.ToolCalls)
			if len(stats.ToolUsage) > 0 {
				fmt.Fprintln(out, "  By tool:")
				names := make([]string, 0, len(stats.ToolUsage))
				for name := range stats.ToolUsage {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "    %s: %d\n", name, stats.ToolUsage[name])
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "window size in days")
	return cmd
}

func newSessionsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <session-id>",
		Short: "Print a session's full transcript and tool calls as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.ContextWithLogger(cmd.Context(), logger.GetDefault())
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			export, err := store.ExportSession(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(export)
		},
	}
}

func newSessionsCleanupCmd() *cobra.Command {
	var olderThan int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete sessions inactive beyond the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logger.ContextWithLogger(cmd.Context(), logger.GetDefault())
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			cutoff := time.Now().UTC().AddDate(0, 0, -olderThan)
			removed, err := store.CleanupSessions(ctx, cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d sessions inactive since %s.\n",
				removed, cutoff.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().IntVar(&olderThan, "older-than", 30, "retention window in days")
	return cmd
}
