package main

import (
	"os"

	"github.com/cockroachdb/datadiff/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
