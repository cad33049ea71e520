package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/register/internal/cli"
)

func main() {
	// A missing .env file is fine; real environment variables still apply
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		cli.ReportError(os.Stderr, err)
		os.Exit(1)
	}
}
