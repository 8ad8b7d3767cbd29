package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/woolong/internal/config"
	"firestige.xyz/woolong/internal/daemon"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Run the reflector over a capture file",
	Long: `Feed every frame of a pcap or pcapng file through the reflector engine.

Reflected frames are written to the output file, stamped with the time of the frame
they answer. No privileges are needed.`,
	Example: `  woolong replay -r wish.pcap -w answer.pcap`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runReplay(cmd.Context(), cfg, replayInput, replayOutput, cmd.OutOrStdout())
	},
}

var (
	replayInput  string
	replayOutput string
)

func init() {
	replayCmd.Flags().StringVarP(&replayInput, "read", "r", "", "capture file to read (required)")
	replayCmd.Flags().StringVarP(&replayOutput, "write", "w", "", "pcap file for reflected frames")
	replayCmd.MarkFlagRequired("read")
}

// runReplay 提取的业务逻辑，方便测试
func runReplay(ctx context.Context, cfg *config.GlobalConfig, in, out string, w io.Writer) error {
	res, err := daemon.Replay(ctx, cfg, in, out)
	if err != nil {
		return fmt.Errorf("replay %s: %w", in, err)
	}
	fmt.Fprintf(w, "frames: %d  pass: %d  transmit: %d  abort: %d  tx errors: %d\n",
		res.Worker.Received, res.Worker.Passed, res.Worker.Transmitted, res.Worker.Aborted, res.Worker.TxErrors)
	if res.Events.Published+res.Events.Dropped > 0 {
		fmt.Fprintf(w, "events: %d published, %d dropped\n", res.Events.Published, res.Events.Dropped)
	}
	return nil
}
