package models

import "time"

// Sarpras is a school asset slated for disposal.
type Sarpras struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Spesifikasi string    `gorm:"size:512" json:"spesifikasi"`
	Tahun       string    `gorm:"size:16" json:"tahun"`
	Umur        *int64    `json:"umur"` // years in service, nullable
	SumberDana  string    `gorm:"size:255" json:"sumber_dana"`
	AlasanID    *uint     `gorm:"index" json:"alasan_id"`
	Alasan      *Alasan   `gorm:"foreignKey:AlasanID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"alasan,omitempty"`
	Jumlah      int       `gorm:"not null;default:0" json:"jumlah"`
}

func (Sarpras) TableName() string {
	return "sarpras"
}
