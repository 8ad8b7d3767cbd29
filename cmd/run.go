package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/woolong/internal/config"
	"firestige.xyz/woolong/internal/daemon"
)

// runCmd attaches the reflector to a live interface
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Attach to an interface and reflect in the foreground",
	Long: `Attach the reflector to a network interface and run until SIGINT or SIGTERM.

run will:
  1. Load configuration (flags override the file)
  2. Check the interface exists and is up
  3. Open one AF_PACKET worker per CPU in a fanout group
  4. Attach the kernel prefilter (eBPF, falling back to classic BPF)
  5. Log captured records and serve metrics if enabled
  6. Reload logging on SIGHUP

Requires CAP_NET_RAW (and CAP_BPF for the eBPF prefilter).`,
	Example: `  woolong run -i eth0
  woolong run -c /etc/woolong/woolong.yml --workers 2 --filter cbpf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		return daemon.New(cfg, configFile).Run(cmd.Context())
	},
}

var (
	runInterface string
	runWorkers   int
	runFilter    string
	runPIDFile   string
)

func init() {
	runCmd.Flags().StringVarP(&runInterface, "iface", "i", "", "interface to attach to (default eth0)")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "capture workers (default one per CPU)")
	runCmd.Flags().StringVar(&runFilter, "filter", "", "kernel prefilter: ebpf, cbpf or none")
	runCmd.Flags().StringVarP(&runPIDFile, "pidfile", "p", "", "PID file path")
}

// applyRunFlags copies explicitly set flags over cfg and re-validates it.
func applyRunFlags(cmd *cobra.Command, cfg *config.GlobalConfig) error {
	flags := cmd.Flags()
	if flags.Changed("iface") {
		cfg.Capture.Interface = runInterface
	}
	if flags.Changed("workers") {
		cfg.Capture.Workers = runWorkers
	}
	if flags.Changed("filter") {
		cfg.Capture.Filter = runFilter
	}
	if flags.Changed("pidfile") {
		cfg.Control.PIDFile = runPIDFile
	}
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
