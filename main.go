package main

import (
	"os"

	"github.com/duybaohuynhtan/CareerAgent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
