package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asecn/memcore/pkg/memcore"
	"github.com/asecn/memcore/pkg/metrics"
)

var (
	metricsAddr  string
	metricsServe bool
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print or serve Prometheus metrics",
	Long: `Print or serve Prometheus metrics for memcore operations.

The store is read once so the size gauges are populated, then the metrics
are printed in the text exposition format. With --serve a /metrics endpoint
runs in the foreground until interrupted.

Exposed metrics:
  - memcore_operations_total
  - memcore_operation_duration_seconds
  - memcore_backups_created_total
  - memcore_corruption_recoveries_total
  - memcore_store_entries
  - memcore_store_size_bytes
  - memcore_recall_results

Examples:
  memcore metrics
  memcore metrics --serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !metrics.Enabled() {
			metrics.Init()
		}
		reg := metrics.Default()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := memcore.Open(memcore.Options{Config: cfg, Metrics: reg})
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := commandContext()
		defer cancel()

		if _, err := client.Read(ctx, memcore.ReadOptions{}); err != nil {
			return err
		}

		if !metricsServe {
			return reg.WriteText(os.Stdout)
		}

		addr := metricsAddr
		if !cmd.Flags().Changed("addr") && cfg.Metrics.Addr != "" {
			addr = cfg.Metrics.Addr
		}
		fmt.Printf("Metrics available at http://%s/metrics\n", addr)
		fmt.Println("Press Ctrl+C to stop")
		if err := metrics.StartServer(addr, reg); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	},
}

func init() {
	metricsCmd.Flags().StringVarP(&metricsAddr, "addr", "a", ":2112", "address to listen on (with --serve)")
	metricsCmd.Flags().BoolVar(&metricsServe, "serve", false, "serve /metrics instead of printing once")
	rootCmd.AddCommand(metricsCmd)
}
