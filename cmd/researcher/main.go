package main

import (
	"researcher/internal/cli"
)

func main() {
	cli.Execute()
}
