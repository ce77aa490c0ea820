package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"siphp/pkg/config"
	"siphp/pkg/storage"
	ttdinbox "siphp/process/ttd_inbox"
)

func main() {
	dir := flag.String("dir", "inbox/ttd", "directory holding <ttd id>.<ext> signature scans")
	workers := flag.Int("workers", 0, "worker pool size (default NumCPU)")
	watch := flag.Bool("watch", false, "keep watching the directory for new files")
	dry := flag.Bool("dry-run", false, "validate images and ids without storing anything")
	verbose := flag.Bool("verbose", false, "verbose per-file logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if cfg.DatabaseDSN == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export and retry")
		os.Exit(2)
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect db: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open storage: %v\n", err)
		os.Exit(1)
	}

	in := ttdinbox.New(db, store, ttdinbox.Options{
		Dir: *dir, Workers: *workers, Watch: *watch, DryRun: *dry, Verbose: *verbose,
	})
	if err := in.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}
