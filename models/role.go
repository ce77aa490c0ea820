package models

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Role represents user roles with numeric primary key
type Role struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"size:32;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
}

// MasterRoles is the seed set for the roles table.
func MasterRoles() []Role {
	return []Role{
		{Name: RoleAdmin, Description: "full access"},
		{Name: RoleUser, Description: "regular user"},
	}
}

// ValidRole reports whether name is one of the seeded roles.
func ValidRole(name string) bool {
	return name == RoleAdmin || name == RoleUser
}
