package main

import (
	"os"

	"github.com/cwrk-planet/call-service/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
