package main

import "github.com/darkvsx/boostd/internal/cli"

func main() {
	cli.Execute()
}
