// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a valid XKOP frame",
	Long: `Wait for a valid XKOP frame on the connection until timeout.

This command connects to the controller and waits for any valid frame,
ignoring stream noise along the way. A STATUS keep-alive counts as
success.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for verifying controller reachability during commissioning.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("xkopbridge - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for valid XKOP frame...\n\n")

	policy := xkop.EnforceChecksum
	if bypassChecksum {
		policy = xkop.BypassChecksum
	}
	decoder := xkop.NewStreamDecoder(xkop.NewCodec(policy))

	frameChan := make(chan xkop.Message, 1)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			msgs := decoder.Feed(buf[:n])
			if len(msgs) > 0 {
				if dropped := decoder.Stats().Snapshot().BytesDropped; dropped > 0 {
					fmt.Printf("(skipped %d invalid bytes before sync)\n", dropped)
				}
				frameChan <- msgs[0]
				return
			}
		}
	}()

	select {
	case msg := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s\n", msg.Type)
		fmt.Printf("  Records: %d\n", len(msg.Records))
		for _, r := range msg.Records {
			fmt.Printf("    [%3d] = %d\n", r.Index, r.Value)
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}
