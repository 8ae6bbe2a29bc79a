// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/utmc-tools/xkopbridge/pkg/capture"
	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

var watchCapturePath string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Display decoded frames in human-readable format",
	Long: `Continuously decode and display XKOP frames as they arrive.

Each valid frame is printed with timestamp, type, and record values.
Stream noise is skipped silently; checksum failures are reported inline.

With --capture, every valid frame is also appended to a capture file
for later replay.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchCapturePath, "capture", "", "Append valid frames to a capture file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	var capw *capture.Writer
	if watchCapturePath != "" {
		capw, err = capture.Create(watchCapturePath)
		if err != nil {
			return err
		}
		defer capw.Close()
	}

	fmt.Printf("xkopbridge - Frame Watch\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	policy := xkop.EnforceChecksum
	if bypassChecksum {
		policy = xkop.BypassChecksum
	}
	codec := xkop.NewCodec(policy)
	decoder := xkop.NewStreamDecoder(codec)
	decoder.ErrorFunc = func(err error) {
		fmt.Printf("[ERROR] %v\n", err)
	}

	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			// A WebSocket read error means the feed is permanently
			// closed - exit gracefully
			if err == ErrConnectionClosed {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for _, msg := range decoder.Feed(buf[:n]) {
			fmt.Print(xkop.FormatMessage(msg))
			if capw != nil {
				frame, encErr := codec.Encode(msg.Type, msg.Records)
				if encErr == nil {
					if err := capw.WriteAt(msg.Timestamp, frame); err != nil {
						log.Printf("Capture error: %v", err)
					}
				}
			}
		}
	}
}
