package main

import (
	"os"

	"assetvault/cmd/av/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		// cobra 已经打印过错误
		os.Exit(1)
	}
}
