// Package cli holds the makerlab-autoreply command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/mikey/makerlab-autoreply/internal/config"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"github.com/mikey/makerlab-autoreply/internal/di"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

type globalFlags struct {
	configFile string
	verbose    bool
	jsonLog    bool
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	var (
		global   globalFlags
		send     bool
		dryRun   bool
		lookback int
	)

	cmd := &cobra.Command{
		Use:   "makerlab-autoreply",
		Short: "Triage workspace emails and draft or send replies",
		Long: `Pulls recent emails from the lab's Podio workspace, skips those that already
have a reply, classifies the rest with a hosted language model and acts on the
result: flag for a human, save a drafted reply as a comment, or send it.

By default replies are only drafted. --send emails them; --dry-run prints
everything and writes nothing.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := core.ResolveRunMode(send, dryRun)
			container, err := di.BuildContainer(cmd.Context(), global.options(cmd, mode))
			if err != nil {
				return err
			}
			return invoke(container, func(p *core.Pipeline, cfg config.PipelineConfig, ledger core.Ledger, client core.LLMClient, logger *zap.Logger) error {
				defer logger.Sync()
				defer release(client, ledger, logger)

				days := cfg.LookbackDays
				if cmd.Flags().Changed("lookback") {
					days = lookback
				}
				_, err := p.Run(cmd.Context(), mode, days)
				return err
			})
		},
	}

	cmd.PersistentFlags().StringVar(&global.configFile, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVarP(&global.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&global.jsonLog, "json-log", false, "Output logs in JSON format")

	cmd.Flags().BoolVar(&send, "send", false, "Send answerable replies by email")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print results without writing comments or sending (wins over --send)")
	cmd.Flags().IntVar(&lookback, "lookback", 7, "Days to look back")

	cmd.AddCommand(newUnrepliedCommand(&global))
	return cmd
}

func (g *globalFlags) options(cmd *cobra.Command, mode core.RunMode) di.Options {
	return di.Options{
		ConfigFile: g.configFile,
		Verbose:    g.verbose,
		JSONLog:    g.jsonLog,
		Mode:       mode,
		Out:        cmd.OutOrStdout(),
	}
}

// invoke runs fn and unwraps dig's error chain so the root cause is reported
func invoke(container *dig.Container, fn any) error {
	if err := container.Invoke(fn); err != nil {
		return dig.RootCause(err)
	}
	return nil
}

func release(client core.LLMClient, ledger core.Ledger, logger *zap.Logger) {
	if closer, ok := client.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}
	if stopper, ok := ledger.(interface{ Stop() }); ok {
		stopper.Stop()
	}
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		return fmt.Errorf("makerlab-autoreply: %w", err)
	}
	return nil
}
