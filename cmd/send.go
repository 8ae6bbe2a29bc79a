// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

var sendCmd = &cobra.Command{
	Use:   "send index=value [index=value ...]",
	Short: "Transmit a DATA frame with the given index values",
	Long: `Build and transmit a single DATA frame.

Each argument is an index=value pair; a frame carries at most 4 records.
Values are 16-bit unsigned, indices 0-254 (255 is the padding index).

Example:
  xkopbridge send --host 10.0.0.5 12=100 13=0`,
	Args: cobra.RangeArgs(1, xkop.MaxRecords),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func parseRecordArg(arg string) (xkop.Record, error) {
	parts := strings.SplitN(arg, "=", 2)
	if len(parts) != 2 {
		return xkop.Record{}, fmt.Errorf("argument %q: want index=value", arg)
	}
	index, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return xkop.Record{}, fmt.Errorf("index %q: %v", parts[0], err)
	}
	if uint8(index) == xkop.IndexUnused {
		return xkop.Record{}, fmt.Errorf("index 255 is the padding index")
	}
	value, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return xkop.Record{}, fmt.Errorf("value %q: %v", parts[1], err)
	}
	return xkop.Record{Index: uint8(index), Value: uint16(value)}, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	records := make([]xkop.Record, 0, len(args))
	for _, arg := range args {
		r, err := parseRecordArg(arg)
		if err != nil {
			return err
		}
		records = append(records, r)
	}

	frame, err := xkop.NewCodec(xkop.EnforceChecksum).Encode(xkop.TypeData, records)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("transmit failed: %v", err)
	}

	fmt.Printf("Sent %d record(s) via %s\n", len(records), connInfo)
	fmt.Printf("  %s\n", xkop.FormatFrame(frame))
	return nil
}
