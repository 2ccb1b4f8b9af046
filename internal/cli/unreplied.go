package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/mikey/makerlab-autoreply/internal/config"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"github.com/mikey/makerlab-autoreply/internal/di"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newUnrepliedCommand(global *globalFlags) *cobra.Command {
	var (
		out      string
		lookback int
	)

	cmd := &cobra.Command{
		Use:   "unreplied",
		Short: "Report keyword-matching emails that have no reply",
		Long: `Scans the lookback window for emails whose subject or body mentions one of
the configured report keywords and that have no real reply comment. Matches
are printed and written as JSON, including the GlobiMail compose link and
forwarding address when the item carries them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := di.BuildContainer(cmd.Context(), global.options(cmd, core.ModeDryRun))
			if err != nil {
				return err
			}
			return invoke(container, func(r *core.Reporter, cfg *config.Config, logger *zap.Logger) error {
				defer logger.Sync()

				reportCfg := cfg.GetReport()
				days := reportCfg.LookbackDays
				if cmd.Flags().Changed("lookback") {
					days = lookback
				}
				path := reportCfg.Output
				if cmd.Flags().Changed("out") {
					path = out
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Searching emails from the last %d days...\n\n", days)
				entries, scanned, err := r.Scan(cmd.Context(), time.Now().AddDate(0, 0, -days))
				if err != nil {
					return err
				}
				core.PrintReport(w, scanned, entries)

				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create report file: %w", err)
				}
				if err := core.WriteReport(f, entries); err != nil {
					f.Close()
					return fmt.Errorf("failed to write report: %w", err)
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
				fmt.Fprintf(w, "\nSaved to %s\n", path)
				logger.Info("Report written", zap.String("path", path), zap.Int("entries", len(entries)))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&out, "out", "unreplied_emails.json", "Report output path")
	cmd.Flags().IntVar(&lookback, "lookback", 30, "Days to look back")
	return cmd
}
