package main

import "github.com/pboyd/fncopy/internal/cli"

func main() {
	cli.Execute()
}
