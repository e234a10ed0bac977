package main

import (
	"context"
	"os"

	"paymanager/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), cli.Options{}))
}
