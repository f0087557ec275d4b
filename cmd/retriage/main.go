package main

import (
	"fmt"
	"os"

	"github.com/okazaki-dev/retriage/internal/interface/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
