package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"siphp/process/report"

	"github.com/joho/godotenv"
)

func main() {
	tahun := flag.Int("tahun", time.Now().Year(), "year of the berita acara to report")
	list := flag.Bool("list", false, "list matching records")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export DB_DSN and retry")
		os.Exit(2)
	}

	report.RunReport(*tahun, *list)
}
