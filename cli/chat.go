package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	llmadapter "github.com/opsrelay/opsrelay/engine/llm/adapter"
	"github.com/opsrelay/opsrelay/engine/llm/orchestrator"
	enginemcp "github.com/opsrelay/opsrelay/engine/mcp"
	"github.com/opsrelay/opsrelay/pkg/config"
	"github.com/opsrelay/opsrelay/pkg/logger"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var systemPrompt string
	var probe bool
	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Talk to the assistant from the console",
		Long: "With a question argument, asks once and prints the answer. " +
			"Without arguments, starts an interactive session; type 'tools' to " +
			"list the tool catalog and 'exit' to leave. --probe only verifies " +
			"connectivity and lists the catalog.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := logger.ContextWithLogger(cmd.Context(), logger.GetDefault())

			loop, tools, cleanup, err := buildLoop(ctx, cfg, systemPrompt)
			if err != nil {
				return err
			}
			defer cleanup()

			if probe {
				return runProbe(ctx, cmd, cfg, tools)
			}
			if len(args) > 0 {
				return askOnce(ctx, cmd, loop, cfg, strings.Join(args, " "))
			}
			return runREPL(ctx, cmd, loop, tools, cfg)
		},
	}
	cmd.Flags().StringVar(&systemPrompt, "system-prompt", defaultSystemPrompt,
		"system prompt framing the assistant")
	cmd.Flags().BoolVar(&probe, "probe", false,
		"check connectivity to the completion service and tool server, then exit")
	return cmd
}

// runProbe reports on the connections buildLoop already established: the
// completion client validated its credentials and the tool server
// completed its handshake, so all that remains is fetching the catalog.
func runProbe(
	ctx context.Context,
	cmd *cobra.Command,
	cfg *config.Config,
	tools *enginemcp.Client,
) error {
	out := cmd.OutOrStdout()
	catalog, err := tools.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("tool server check failed: %w", err)
	}
	fmt.Fprintf(out, "Tool server OK: %d tools at %s\n", len(catalog), cfg.Tools.ServerURL)
	for _, tool := range catalog {
		fmt.Fprintf(out, "  %s - %s\n", tool.Name, firstLine(tool.Description))
	}
	fmt.Fprintf(out, "Completion client OK: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	return nil
}

// buildLoop wires the completion client, the tool-server client, and the
// conversation loop. Any failure here is a configuration fault; nothing
// has started yet.
func buildLoop(
	ctx context.Context,
	cfg *config.Config,
	systemPrompt string,
) (*orchestrator.Loop, *enginemcp.Client, func(), error) {
	client, err := llmadapter.NewClient(&cfg.LLM)
	if err != nil {
		return nil, nil, nil, err
	}
	tools, err := enginemcp.NewClient(enginemcp.Config{
		URL:            cfg.Tools.ServerURL,
		ConnectTimeout: cfg.Tools.ConnectTimeout,
		RequestTimeout: cfg.Tools.RequestTimeout,
	})
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}
	if err := tools.Connect(ctx); err != nil {
		client.Close()
		return nil, nil, nil, err
	}
	cleanup := func() {
		tools.Close()
		client.Close()
	}
	loop, err := orchestrator.New(orchestrator.Config{
		Client:       client,
		Tools:        tools,
		SystemPrompt: systemPrompt,
		MaxTokens:    cfg.LLM.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return loop, tools, cleanup, nil
}

func askOnce(
	ctx context.Context,
	cmd *cobra.Command,
	loop *orchestrator.Loop,
	cfg *config.Config,
	question string,
) error {
	answer, err := loop.Run(ctx, question, orchestrator.RunOptions{
		MaxTurns: cfg.Chat.ConsoleMaxTurns,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}

func runREPL(
	ctx context.Context,
	cmd *cobra.Command,
	loop *orchestrator.Loop,
	tools *enginemcp.Client,
	cfg *config.Config,
) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Connected. Ask a question, 'tools' for the catalog, 'exit' to leave.")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(out)
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			fmt.Fprintln(out, "Bye.")
			return nil
		case line == "tools":
			printCatalog(ctx, out, tools)
			continue
		}

		answer, err := loop.Run(ctx, line, orchestrator.RunOptions{
			MaxTurns: cfg.Chat.ConsoleMaxTurns,
		})
		if err != nil {
			// The session survives a failed conversation; the next question
			// starts clean.
			fmt.Fprintln(out, err.Error())
			continue
		}
		fmt.Fprintln(out, answer)
	}
}

func printCatalog(ctx context.Context, out io.Writer, tools *enginemcp.Client) {
	catalog, err := tools.ListTools(ctx)
	if err != nil {
		fmt.Fprintf(out, "Failed to list tools: %v\n", err)
		return
	}
	if len(catalog) == 0 {
		fmt.Fprintln(out, "The tool server offers no tools.")
		return
	}
	for _, tool := range catalog {
		fmt.Fprintf(out, "  %s - %s\n", tool.Name, firstLine(tool.Description))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
