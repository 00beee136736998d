package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/n26-ynab/bridge/internal/bridge"
	"github.com/n26-ynab/bridge/internal/buildinfo"
	"github.com/n26-ynab/bridge/internal/config"
	"github.com/n26-ynab/bridge/internal/n26"
	"github.com/n26-ynab/bridge/internal/ynab"
)

// syncOptions are the resolved CLI flags for one run.
type syncOptions struct {
	accountName string
	retries     int
	delaySec    int
	configDir   string
	logsDir     string
}

// NewRootCommand creates the CLI. The root command itself runs the sync;
// there are no subcommands.
func NewRootCommand(log zerolog.Logger) *cobra.Command {
	var opts syncOptions

	rootCmd := &cobra.Command{
		Use:   "n26-ynab",
		Short: "Push N26 transactions into a YNAB budget account",
		Long: "n26-ynab downloads the transactions of one configured N26 account and pushes\n" +
			"them into the linked YNAB budget account. Duplicate pushes are suppressed by\n" +
			"YNAB through the import_id, so re-running after a failure is safe.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), log, opts)
		},
	}

	rootCmd.Flags().StringVarP(&opts.accountName, "account", "a", "", "account name as configured in n26.toml")
	rootCmd.Flags().IntVar(&opts.retries, "retries", 0, "extra fetch attempts after a two-factor approval timeout")
	rootCmd.Flags().IntVar(&opts.delaySec, "delay", 1800, "seconds to wait between fetch attempts")
	rootCmd.Flags().StringVar(&opts.configDir, "config-dir", "config", "directory holding n26.toml and ynab.toml")
	rootCmd.Flags().StringVar(&opts.logsDir, "logs-dir", "logs", "directory for per-run fetch traces")
	_ = rootCmd.MarkFlagRequired("account")

	return rootCmd
}

func runSync(ctx context.Context, log zerolog.Logger, opts syncOptions) error {
	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return err
	}

	account, err := cfg.Account(opts.accountName)
	if err != nil {
		return err
	}

	source := n26.NewClient(n26.DefaultBaseURL, n26.Credentials{
		Username:    account.Username,
		Password:    account.Password,
		MFAType:     account.MFAType,
		DeviceToken: account.DeviceToken,
		TokenPath:   config.TokenPath(opts.configDir, opts.accountName),
	}, log)

	destination := ynab.NewClient(ynab.DefaultBaseURL, cfg.YNAB.APIKey, log)

	svc := bridge.NewService(bridge.Params{
		Source:      source,
		Destination: destination,
		Logger:      log,
		AccountName: opts.accountName,
		BudgetName:  cfg.YNAB.BudgetName,
		YNABAccount: account.YNABAccount,
		LogsDir:     opts.logsDir,
		Retries:     opts.retries,
		RetryDelay:  time.Duration(opts.delaySec) * time.Second,
	})

	return svc.Run(ctx)
}
