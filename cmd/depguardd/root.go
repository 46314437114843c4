package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/depguard/config"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "depguardd",
		Short: "Dependency resilience layer for code-intelligence services",
		Long: `depguardd mediates calls to completion, vector search and documentation
services. It tracks their health, adapts rate limits to it, recovers failed
dependencies in the background and falls back to local heuristics when every
remote tier is unavailable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: ./depguard.yaml or /etc/depguard/depguard.yaml)")

	cmd.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Observe.Version == "" || cfg.Observe.Version == "dev" {
		cfg.Observe.Version = version
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "depguardd %s\n", version)
		},
	}
}
