// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/woolong/internal/config"
	"firestige.xyz/woolong/internal/log"
)

// Version is set at build time with -ldflags "-X firestige.xyz/woolong/cmd.Version=...".
var Version = "0.1.0"

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "woolong",
	Short: "woolong - ingress signature reflector",
	Long: `woolong watches TCP segments arriving from a trigger port. When a segment's payload
carries the configured signature it is answered on the spot: the frame is turned around,
its payload replaced, sequence numbers and checksums fixed up, and sent back out of the
interface it arrived on. Everything else passes untouched.

Also included are an offline replay over pcap files and the shenron/pilaf demonstration
pair.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and WOOLONG_* environment when empty)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(shenronCmd)
	rootCmd.AddCommand(pilafCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the global configuration and installs its logger.
func loadConfig() (*config.GlobalConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := log.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}
