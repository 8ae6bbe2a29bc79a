// SPDX-License-Identifier: Apache-2.0

package xkop

import (
	"fmt"
	"strings"
)

// FormatMessage renders a decoded message in the log format used by the
// watch and replay commands.
func FormatMessage(msg Message) string {
	ts := msg.Timestamp.Format("15:04:05.000")
	if msg.Type == TypeStatus {
		return fmt.Sprintf("[%s] STATUS (keep-alive)\n", ts)
	}

	result := fmt.Sprintf("[%s] %s (0x%02X) records=%d\n", ts, msg.Type, uint8(msg.Type), len(msg.Records))
	for _, r := range msg.Records {
		result += fmt.Sprintf("  idx=%3d value=%5d (0x%04X)\n", r.Index, r.Value, r.Value)
	}
	return result
}

// FormatFrame renders a raw frame as spaced hex, e.g. for invalid-frame
// diagnostics.
func FormatFrame(frame []byte) string {
	parts := make([]string, len(frame))
	for i, b := range frame {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
