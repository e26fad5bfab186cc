// Command bmff inspects, rewrites and produces ISO base media files.
package main

import (
	"os"

	"github.com/ugparu/bmff/cmd/bmff/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
