package main

import (
	"os"

	"github.com/sabq4org/so7ba.ai/cmd/quant/commands"
)

// main is the entry point for the so7ba CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/quant [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
