package models

import (
	"time"
)

// User is an operator of the application. Role is resolved through the roles master table.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Nama         string    `gorm:"size:255;not null" json:"nama"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash []byte    `gorm:"not null" json:"-"`
	RoleID       uint      `gorm:"index;not null" json:"-"`
	Role         Role      `gorm:"foreignKey:RoleID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}

// RoleName returns the loaded role name, empty when Role was not preloaded.
func (u User) RoleName() string {
	return u.Role.Name
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role.Name == RoleAdmin
}
