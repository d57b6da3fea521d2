// Command offload-gui is the graphical front-end for the download-and-
// decryption core.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/offloadhq/offload-client/internal/gui"
)

func main() {
	cfgFile := flag.String("config", "", "Configuration file path")
	flag.Parse()

	if err := gui.Run(*cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
