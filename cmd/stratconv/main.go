package main

import "github.com/quant-king299/stratconv/cmd/stratconv/commands"

func main() {
	commands.Execute()
}
