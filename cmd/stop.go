package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running woolong",
	Long: `Stop a woolong started with a PID file. SIGTERM is sent and the command waits for
the process to detach and exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStop(cmd.Context(), GetClient(), cmd.OutOrStdout())
	},
}

func init() {
	stopCmd.Flags().StringVarP(&controlPIDFile, "pidfile", "p", "", "PID file of the running woolong")
	stopCmd.Flags().DurationVar(&controlTimeout, "timeout", controlTimeout, "how long to wait for exit")
}

// runStop 提取的业务逻辑，方便测试
func runStop(ctx context.Context, client ClientInterface, out io.Writer) error {
	if err := client.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	fmt.Fprintln(out, "✓ woolong stopped")
	return nil
}
