package main

import (
	"os"

	"github.com/chrisapx/fif-client-sub000/cmd/cli"
)

func main() {
	if err := cli.GetCommandOptions().Execute(); err != nil {
		os.Exit(1)
	}
}
