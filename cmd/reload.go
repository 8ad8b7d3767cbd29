package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload configuration",
	Long:  `Send SIGHUP to a running woolong. Only logging settings take effect without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReload(cmd.Context(), GetClient(), cmd.OutOrStdout())
	},
}

func init() {
	reloadCmd.Flags().StringVarP(&controlPIDFile, "pidfile", "p", "", "PID file of the running woolong")
}

// runReload 提取的业务逻辑，方便测试
func runReload(ctx context.Context, client ClientInterface, out io.Writer) error {
	if err := client.Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	fmt.Fprintln(out, "✓ Configuration reloaded successfully")
	return nil
}
