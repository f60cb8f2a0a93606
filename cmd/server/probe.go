package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"hospital-console-go/internal/config"
	"hospital-console-go/internal/model"
	"hospital-console-go/internal/service"
	"hospital-console-go/pkg/backend"
)

// newProbeCmd 探测一次后端并打印系统状态，后端不可达时返回非零退出码。
func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check backend connectivity and print its system status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPathFlag(cmd))
			if err != nil {
				return err
			}
			client := backend.NewClient(cfg.Backend)
			monitor := service.NewConnectivityService(client, nil)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout)
			defer cancel()

			out := cmd.OutOrStdout()
			snap := monitor.Probe(ctx)
			fmt.Fprintf(out, "backend: %s\nstate:   %s\n", cfg.Backend.BaseURL, snap.State)
			if snap.State != model.ConnectivityConnected {
				return fmt.Errorf("backend unreachable: %s", snap.LastError)
			}

			status, err := client.SystemStatus(ctx)
			if err != nil {
				return fmt.Errorf("fetch system status: %w", err)
			}
			body, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(body))
			return nil
		},
	}
}
