package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/depguard/observe"
	"github.com/jonwraymond/depguard/orchestrator"
	"github.com/jonwraymond/depguard/service"
)

type checkReport struct {
	Initialized bool                         `json:"initialized"`
	Error       string                       `json:"error,omitempty"`
	Services    []orchestrator.ServiceStatus `json:"services"`
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Initialize every dependency once and print its status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			var inst observe.Instruments
			if cfg.Observe.Logging.Enabled {
				inst.Logger = observe.NewLoggerWithWriter(cfg.Observe.Logging, cmd.ErrOrStderr())
			}
			o, err := orchestrator.New(cfg, orchestrator.WithInstruments(inst))
			if err != nil {
				return err
			}
			defer o.Shutdown(ctx)

			initErr := o.Init(ctx)
			report := checkReport{Initialized: o.IsInitialized()}
			if initErr != nil {
				report.Error = initErr.Error()
			}
			for _, id := range service.All() {
				report.Services = append(report.Services, o.Status(id))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if initErr != nil {
				return fmt.Errorf("check failed: %w", initErr)
			}
			return nil
		},
	}
}
