package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"blobbench/internal/app"
	"blobbench/internal/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCmd builds the blobbench command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "blobbench",
		Short:         "Compare object store and relational blob latency.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "blobbench.toml", "path to the TOML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newUploadCmd(opts),
		newDownloadCmd(opts),
		newDeleteCmd(opts),
		newListCmd(opts),
		newSearchCmd(opts),
		newCheckCmd(opts),
	)

	return cmd
}

// withApp opens both stores for the duration of fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, out io.Writer) error) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	if err := app.SetupLogging(cmd.ErrOrStderr(), level); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, cmd.OutOrStdout())
}
