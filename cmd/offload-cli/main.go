// Command offload-cli is the command-line front-end for the download-and-
// decryption core: start an archive download, pause it, or list tasks.
package main

import (
	"os"

	"github.com/offloadhq/offload-client/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
