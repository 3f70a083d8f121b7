package main

import (
	"os"

	"github.com/chatbot-admin/backend/cmd/kbctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
