package main

import (
	"os"

	"localllm/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
