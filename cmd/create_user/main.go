package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"siphp/models"
	"siphp/pkg/config"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: go run ./cmd/create_user <email> <password> [nama] [admin|user]")
		os.Exit(2)
	}
	email := strings.ToLower(strings.TrimSpace(os.Args[1]))
	password := os.Args[2]
	nama := email
	if len(os.Args) > 3 {
		nama = strings.TrimSpace(os.Args[3])
	}
	roleName := models.RoleUser
	if len(os.Args) > 4 {
		roleName = strings.ToLower(os.Args[4])
	}
	if !models.ValidRole(roleName) {
		log.Fatalf("invalid role %q (want admin or user)", roleName)
	}
	if len(password) < 6 {
		log.Fatal("password too short (min 6)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	// ensure roles exist
	role := models.Role{Name: roleName}
	for _, r := range models.MasterRoles() {
		if r.Name == roleName {
			role = r
		}
	}
	if err := db.Where("name = ?", roleName).FirstOrCreate(&role).Error; err != nil {
		log.Fatalf("failed to ensure role %s: %v", roleName, err)
	}

	// check existing
	var existing models.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		fmt.Printf("user %s already exists (id=%d)\n", email, existing.ID)
		os.Exit(0)
	}

	hpw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("bcrypt failed: %v", err)
	}
	user := models.User{Nama: nama, Email: email, PasswordHash: hpw, RoleID: role.ID}
	if err := db.Omit("Role").Create(&user).Error; err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("created %s user %s id=%d\n", roleName, email, user.ID)
}
