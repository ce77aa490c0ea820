package models

// Ttd is an approving official's signature: position, name and a stored image.
type Ttd struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Jabatan string `gorm:"size:255;not null" json:"jabatan"`
	Nama    string `gorm:"size:255;not null" json:"nama"`
	FotoTtd string `gorm:"size:1024" json:"foto_ttd"` // public URL
	FotoKey string `gorm:"size:255" json:"-"`         // object key in the signature store
}

func (Ttd) TableName() string {
	return "ttd"
}
