// Command formproc runs form submission pipelines from the command line or
// as a NATS service.
package main

import (
	"fmt"
	"os"

	"github.com/wehubfusion/Daedalus/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "formproc:", err)
		os.Exit(1)
	}
}
