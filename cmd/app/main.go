package main

import (
	"os"

	"crisisrelay/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}
