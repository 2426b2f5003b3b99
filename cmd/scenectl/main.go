package main

import (
	"os"

	"GopherScene/internal/logger"

	_ "GopherScene/scripts"
)

func main() {
	defer logger.Sync()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
