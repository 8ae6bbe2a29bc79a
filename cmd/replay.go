// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/utmc-tools/xkopbridge/pkg/capture"
	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

var replayPaced bool

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Decode and display frames from a capture file",
	Long: `Read a capture file written by 'watch --capture' and print each
frame the way watch would have shown it live.

With --paced, playback sleeps between frames to reproduce the original
inter-frame timing.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayPaced, "paced", false, "Reproduce original inter-frame timing")
}

func runReplay(cmd *cobra.Command, args []string) error {
	r, err := capture.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	policy := xkop.EnforceChecksum
	if bypassChecksum {
		policy = xkop.BypassChecksum
	}
	codec := xkop.NewCodec(policy)

	var (
		count    int
		previous time.Time
	)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if replayPaced && !previous.IsZero() {
			if gap := rec.Timestamp.Sub(previous); gap > 0 {
				time.Sleep(gap)
			}
		}
		previous = rec.Timestamp

		msg, err := codec.Decode(rec.Frame)
		if err != nil {
			fmt.Printf("[ERROR] record %d: %v\n", count, err)
			count++
			continue
		}
		// Show the capture-time stamp, not decode time.
		msg.Timestamp = rec.Timestamp
		fmt.Print(xkop.FormatMessage(msg))
		count++
	}

	fmt.Printf("\n%d record(s) replayed\n", count)
	return nil
}
