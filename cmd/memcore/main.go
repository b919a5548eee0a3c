package main

import "github.com/asecn/memcore/internal/cli"

func main() {
	cli.Execute()
}
