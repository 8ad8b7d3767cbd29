package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/woolong/internal/demo"
	"firestige.xyz/woolong/internal/log"
)

var shenronCmd = &cobra.Command{
	Use:   "shenron",
	Short: "Run the demonstration server",
	Long: `Listen on the trigger port and grant one wish per connection: the first message is
answered with the signature, the second with a confirmation, then the connection is closed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err := demo.NewShenron(shenronAddr, cmd.OutOrStdout()).ListenAndServe(ctx)
		log.GetLogger().Info("shenron stopped")
		return err
	},
}

var shenronAddr string

func init() {
	shenronCmd.Flags().StringVarP(&shenronAddr, "listen", "l", demo.DefaultAddr, "listen address")
}
