package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/woolong/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file the way run does and report whether it is valid,
including the signature/replacement length invariant.`,
	Example: `  woolong validate -c /etc/woolong/woolong.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(configFile, cmd.OutOrStdout())
	},
}

func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}
	opts, err := cfg.Reflector.Options()
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}

	fmt.Fprintf(out, "VALID: interface %s, trigger port %d, %d-byte signature (%s match, %s offset, %s checksum, %s)\n",
		cfg.Capture.Interface,
		opts.TriggerPort,
		len(opts.Signature),
		opts.Match,
		opts.Offset,
		opts.Checksum,
		opts.Policy,
	)
	return nil
}
