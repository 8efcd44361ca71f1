package main

import "github.com/mcoot/playerhub/internal/cli"

func main() {
	cli.Execute()
}
