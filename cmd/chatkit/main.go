package main

import "chatkit/internal/cli"

func main() {
	cli.Execute()
}
