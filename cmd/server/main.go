// Command server runs the cutroom preview engine: the HTTP and websocket API
// over editor sessions, plus maintenance subcommands.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
