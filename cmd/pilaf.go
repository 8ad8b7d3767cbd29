package cmd

import (
	"github.com/spf13/cobra"

	"firestige.xyz/woolong/internal/demo"
)

var pilafCmd = &cobra.Command{
	Use:   "pilaf",
	Short: "Run the demonstration client",
	Long: `Connect to shenron, summon it and forward each line typed on stdin, printing one reply
per line. Type /quit or /exit to disconnect.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return demo.NewPilaf(pilafAddr, cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
	},
}

var pilafAddr string

func init() {
	pilafCmd.Flags().StringVarP(&pilafAddr, "addr", "a", demo.DefaultAddr, "shenron address")
}
