// ABOUTME: Entry point for the storefront CLI
// ABOUTME: Terminal client that keeps a device cart and merges it into the account on login

package main

import (
	"fmt"
	"os"

	"github.com/markalston/storefront-client/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
