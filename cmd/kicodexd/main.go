// Command kicodexd serves CSV-backed component libraries to KiCad over
// its HTTP library protocol.
package main

import (
	"fmt"
	"os"

	"github.com/kicodex/kicodexd/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
