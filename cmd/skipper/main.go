package main

import "github.com/skipper-dev/skipper/internal/cli"

func main() {
	cli.Execute()
}
