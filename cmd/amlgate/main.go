package main

import "github.com/ppiankov/amlgate/internal/cli"

func main() {
	cli.Execute()
}
