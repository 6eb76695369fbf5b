package main

import (
	"context"
	"os"

	"github.com/kirikodevv/grabctx/internal/cli"
)

var version = "0.1.0-dev"

func main() {
	os.Exit(cli.Execute(context.Background(), version))
}
