package sanitize

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"siphp/models"
	"siphp/pkg/config"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DefaultTables lists the application tables, children first.
const DefaultTables = "berita_acara_ttd,berita_acara_barang,berita_acara,sarpras,alasan,ttd,sessions,users,roles"

var nameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseTables splits a comma-separated list into valid identifiers and rejected entries.
func ParseTables(csv string) (valid, skipped []string) {
	seen := map[string]bool{}
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if !nameRe.MatchString(p) {
			skipped = append(skipped, p)
			continue
		}
		valid = append(valid, p)
	}
	return valid, skipped
}

// TruncateStatement builds the TRUNCATE for already validated table names.
func TruncateStatement(tables []string) string {
	quoted := make([]string, 0, len(tables))
	for _, t := range tables {
		// double-quote the identifier to preserve case and safety
		quoted = append(quoted, fmt.Sprintf("\"%s\"", t))
	}
	return fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
}

// Run executes the db_sanitize CLI behavior. Exported so a small cmd/main can call it.
func Run() {
	var (
		dryRun = flag.Bool("dry-run", true, "Don't perform destructive actions; show what would be done")
		yes    = flag.Bool("yes", false, "Confirm destructive action (required to actually truncate)")
		reseed = flag.Bool("reseed", false, "After truncation, reseed master roles and the admin user")
		tables = flag.String("tables", DefaultTables, "Comma-separated list of tables to truncate")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("DB_DSN must be set to run db_sanitize")
	}
	gdb := mustInitDB(cfg.DatabaseDSN)

	wanted, skipped := ParseTables(*tables)
	for _, s := range skipped {
		log.Printf("warning: skipping invalid table name '%s'", s)
	}

	existing := []string{}
	// check presence individually to avoid any injection risk
	for _, t := range wanted {
		var cnt int64
		if err := gdb.Raw("SELECT count(*) FROM pg_tables WHERE schemaname = 'public' AND tablename = ?", t).Scan(&cnt).Error; err != nil {
			log.Fatalf("failed to query pg_tables for %s: %v", t, err)
		}
		if cnt > 0 {
			existing = append(existing, t)
		} else {
			log.Printf("info: table %s not found, skipping", t)
		}
	}
	if len(existing) == 0 {
		log.Println("no requested tables present in the database; nothing to do")
		return
	}

	fmt.Println("Tables considered for truncation:")
	for _, t := range existing {
		fmt.Printf(" - %s\n", t)
	}

	if *dryRun {
		fmt.Println("dry-run enabled; no changes will be made. Use --dry-run=false --yes to execute.")
		return
	}
	if !*yes {
		fmt.Println("Destructive operation. Pass --yes to confirm execution. Aborting.")
		return
	}

	stmt := TruncateStatement(existing)
	log.Printf("Executing: %s", stmt)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := gdb.WithContext(ctx).Exec(stmt).Error; err != nil {
		log.Fatalf("truncate failed: %v", err)
	}
	log.Println("Truncate completed.")

	if *reseed {
		if err := reseedRolesAndAdmin(gdb, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatalf("reseed failed: %v", err)
		}
		log.Printf("Reseeded roles and admin %s", cfg.AdminEmail)
	}
}

func reseedRolesAndAdmin(gdb *gorm.DB, email, password string) error {
	for _, r := range models.MasterRoles() {
		if err := gdb.Where("name = ?", r.Name).FirstOrCreate(&r).Error; err != nil {
			return fmt.Errorf("failed to ensure role %s: %w", r.Name, err)
		}
	}
	var role models.Role
	if err := gdb.Where("name = ?", models.RoleAdmin).First(&role).Error; err != nil {
		return fmt.Errorf("failed to find admin role: %w", err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin := models.User{Nama: "Administrator", Email: email, PasswordHash: hashed, RoleID: role.ID}
	if err := gdb.Omit("Role").Where("email = ?", email).FirstOrCreate(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

// mustInitDB is a light DB initializer used by this CLI.
func mustInitDB(dsn string) *gorm.DB {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if os.Getenv("DB_SANITIZE_DEBUG") != "" {
		gdb = gdb.Debug()
	}
	return gdb
}
