package main

import (
	"errors"
	"fmt"
	"log/slog"

	"siphp/models"
	"siphp/pkg/config"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func initDB(cfg config.Config) error {
	if cfg.DatabaseDSN == "" {
		return errors.New("DB_DSN is not set. This project requires a Postgres DSN in DB_DSN")
	}
	conn, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return fmt.Errorf("failed to connect postgres database: %w", err)
	}
	db = conn

	// Roles go first so the users FK can be applied.
	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&models.Role{}); err != nil {
			slog.Warn("migration warning", "table", "roles", "error", err)
		}
	}
	if err := seedRoles(); err != nil {
		return err
	}

	if cfg.AutoMigrate {
		// Migrate models individually so a failure on one doesn't block others
		tables := []struct {
			name  string
			model any
		}{
			{"users", &models.User{}},
			{"sessions", &models.Session{}},
			{"alasan", &models.Alasan{}},
			{"sarpras", &models.Sarpras{}},
			{"ttd", &models.Ttd{}},
			{"berita_acara", &models.BeritaAcara{}},
			{"berita_acara_barang", &models.BeritaAcaraBarang{}},
			{"berita_acara_ttd", &models.BeritaAcaraTtd{}},
		}
		for _, t := range tables {
			if err := db.AutoMigrate(t.model); err != nil {
				slog.Warn("migration warning", "table", t.name, "error", err)
			}
		}
		if err := ensureReferences(); err != nil {
			slog.Warn("ensuring foreign keys failed", "error", err)
		}
	}
	return seedAdmin(cfg.AdminEmail, cfg.AdminPassword)
}

type reference struct {
	table, column, refTable, onDelete string
}

// Tables created before the constraints were modelled may lack them; AutoMigrate
// never adds a FK to an existing column.
var references = []reference{
	{"sarpras", "alasan_id", "alasan", "RESTRICT"},
	{"berita_acara_barang", "berita_acara_id", "berita_acara", "CASCADE"},
	{"berita_acara_barang", "sarpras_id", "sarpras", "RESTRICT"},
	{"berita_acara_ttd", "berita_acara_id", "berita_acara", "CASCADE"},
	{"berita_acara_ttd", "ttd_id", "ttd", "RESTRICT"},
}

// ensureReferences adds the foreign keys in references when they are missing.
func ensureReferences() error {
	for _, ref := range references {
		if err := ensureForeignKey(ref); err != nil {
			return fmt.Errorf("%s.%s: %w", ref.table, ref.column, err)
		}
	}
	return nil
}

func ensureForeignKey(ref reference) error {
	type cnt struct{ N int }
	var c cnt
	fkCheckSQL := `SELECT count(*) AS n
		FROM pg_constraint ct
		JOIN pg_class rel ON rel.oid = ct.conrelid
		WHERE rel.relname = ? AND ct.contype = 'f'
		  AND pg_get_constraintdef(ct.oid) ILIKE ? AND pg_get_constraintdef(ct.oid) ILIKE ?`
	if err := db.Raw(fkCheckSQL, ref.table, "%("+ref.column+")%", "%REFERENCES "+ref.refTable+"(%").Scan(&c).Error; err != nil {
		return err
	}
	if c.N > 0 {
		return nil
	}
	name := fmt.Sprintf("fk_%s_%s", ref.table, ref.column)
	stmt := fmt.Sprintf(`ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(id) ON UPDATE CASCADE ON DELETE %s`,
		ref.table, name, ref.column, ref.refTable, ref.onDelete)
	return db.Exec(stmt).Error
}

func seedRoles() error {
	for _, r := range models.MasterRoles() {
		if err := db.Where("name = ?", r.Name).FirstOrCreate(&r).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", r.Name, err)
		}
	}
	return nil
}

// seedAdmin creates the first administrator when no user has the admin role yet.
func seedAdmin(email, password string) error {
	var count int64
	if err := db.Model(&models.User{}).
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("roles.name = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}
	role, err := roleByName(db, models.RoleAdmin)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{Nama: "Administrator", Email: email, PasswordHash: hash, RoleID: role.ID}
	if err := db.Where("email = ?", email).FirstOrCreate(&admin).Error; err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if admin.RoleID != role.ID {
		if err := db.Model(&admin).Update("role_id", role.ID).Error; err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
	}
	slog.Info("seeded admin user", "email", email)
	return nil
}

func roleByName(tx *gorm.DB, name string) (models.Role, error) {
	var role models.Role
	if err := tx.Where("name = ?", name).First(&role).Error; err != nil {
		return models.Role{}, fmt.Errorf("role %s: %w", name, err)
	}
	return role, nil
}
