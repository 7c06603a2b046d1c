package main

import "askcode/internal/cli"

func main() {
	cli.Execute()
}
