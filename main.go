package main

import (
	"context"
	"os"

	"github.com/spf13/afero"

	"tagc/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr, afero.NewOsFs()))
}
