package main

import "github.com/packsmith/launcher/internal/cli"

func main() {
	cli.Execute()
}
