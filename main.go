package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"siphp/pkg/config"
	"siphp/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

var (
	jwtSecret []byte // from JWT_SECRET, dev fallback when unset
	appCfg    config.Config
	store     storage.Store
)

const addrFlag = "addr"

var serveFlags = map[string]cobraflags.Flag{
	addrFlag: &cobraflags.StringFlag{
		Name:  addrFlag,
		Value: "",
		Usage: "Listen address, overrides HTTP_ADDR",
	},
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  serveCommand,
	}
	cobraflags.RegisterMap(serveCmd, serveFlags)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run AutoMigrate and seeding, then exit",
		RunE:  migrateCommand,
	}

	root := &cobra.Command{
		Use:          "siphp",
		Short:        "Sarpras disposal records and berita acara PDFs",
		SilenceUsage: true,
		RunE:         serveCommand,
	}
	cobraflags.RegisterMap(root, serveFlags)
	root.AddCommand(serveCmd, migrateCmd)
	return root
}

// loadConfig resolves configuration, installs the logger and the JWT secret.
func loadConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.UsingDevSecret() {
		slog.Warn("JWT_SECRET is not set, using the development secret")
	}
	appCfg = cfg
	jwtSecret = []byte(cfg.JWTSecret)
	return nil
}

func migrateCommand(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	appCfg.AutoMigrate = true
	if err := initDB(appCfg); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migration and seeding completed")
	return nil
}

func serveCommand(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if addr := serveFlags[addrFlag].GetString(); addr != "" {
		appCfg.HTTPAddr = addr
	}
	if err := initDB(appCfg); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	s, err := storage.New(ctx, appCfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	store = s

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	if appCfg.Storage.Driver == config.StorageLocal {
		r.Static(appCfg.Storage.PublicPath, appCfg.Storage.UploadBase)
	}
	setupRoutes(r)

	slog.Info("listening", "addr", appCfg.HTTPAddr, "storage", appCfg.Storage.Driver)
	return r.Run(appCfg.HTTPAddr)
}

func setupLogger(cfg config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// requestLogger logs one line per request once the handler chain is done.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			slog.Error("request", attrs...)
		case status >= 400:
			slog.Warn("request", attrs...)
		default:
			slog.Info("request", attrs...)
		}
	}
}
