package main

import (
	"os"

	"github.com/funvibe/infact/pkg/cli"
	"github.com/funvibe/infact/pkg/examples"
)

func main() {
	os.Exit(cli.Run(os.Args, examples.Register))
}
