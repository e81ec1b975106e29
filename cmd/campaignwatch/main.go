package main

import (
	"fmt"
	"os"

	"github.com/campaignwatch/campaignwatch/cmd/campaignwatch/root"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := root.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
