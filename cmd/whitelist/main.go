// Command whitelist manages the bot's whitelist and admins from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/veigamann/whisper-zap/internal/cli"
)

func main() {
	_ = godotenv.Load()

	cmd := cli.NewWhitelistCmd(os.Stdout, cli.OpenStore)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
