// SPDX-License-Identifier: Apache-2.0
//
// xkopbridge - XKOP field controller bridge
//
// Keeps a session to a traffic signal field controller speaking the
// XKOP frame protocol, mirrors its index values, and republishes them
// over HTTP. Also ships line tools for watching, probing, and injecting
// frames during commissioning.

package main

import (
	"os"

	"github.com/utmc-tools/xkopbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
