package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"siphp/process/inspect"
)

func main() {
	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export and retry")
		os.Exit(2)
	}
	missing, err := inspect.Run(os.Stdout, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect failed: %v\n", err)
		os.Exit(1)
	}
	if missing > 0 {
		os.Exit(1)
	}
}
