package models

// Alasan is a disposal reason, referenced by Sarpras.
type Alasan struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Nama string `gorm:"size:255;not null" json:"nama"`
}

func (Alasan) TableName() string {
	return "alasan"
}
