// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Controller socket flags
	ctrlHost      string
	ctrlPort      int
	ctrlTransport string

	// Serial connection flags
	serialPort string
	baudRate   int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Checksum policy flag
	bypassChecksum bool
)

var rootCmd = &cobra.Command{
	Use:   "xkopbridge",
	Short: "XKOP field controller bridge",
	Long: `xkopbridge - tools for talking XKOP to traffic signal field controllers.

The serve command runs the bridge daemon: it holds a session to the
controller, mirrors its index values, and republishes them over HTTP.
The remaining commands are line tools for watching, probing, and
injecting frames during commissioning.

Connection modes:
  Socket:    --host 10.0.0.5 [--ctrl-port 8001] [--transport tcp|udp]
  Serial:    --serial /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/ws [--username user]

For WebSocket authentication, the password is read from the XKOP_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell
history.`,
	Version: "1.2.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ctrlHost, "host", "", "Controller host")
	rootCmd.PersistentFlags().IntVar(&ctrlPort, "ctrl-port", 8001, "Controller port")
	rootCmd.PersistentFlags().StringVar(&ctrlTransport, "transport", "tcp", "Controller transport (tcp or udp)")

	rootCmd.PersistentFlags().StringVarP(&serialPort, "serial", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().BoolVar(&bypassChecksum, "bypass-checksum", false, "Accept frames with bad checksums (bench simulators)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
