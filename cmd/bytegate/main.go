// Command bytegate runs the BYTE voice assistant gateway.
//
// Usage:
//
//	bytegate serve --config configs/bytegate.yaml
//	bytegate say --url ws://localhost:8000/ws --llm-key $GEMINI_API_KEY "hello"
package main

import (
	"fmt"
	"os"

	"github.com/harunnryd/bytegate/cmd/bytegate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
