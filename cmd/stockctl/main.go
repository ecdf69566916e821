package main

import (
	"fmt"
	"os"

	"github.com/odyssey-erp/stockroom/cmd/stockctl/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.DefaultEnv()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
