package models

import "time"

// Signature slots of a berita acara, in the order the officials are printed.
const (
	SlotWakilKepalaSarpras = 0
	SlotPelaksana          = 1
	SlotKepalaSekolah      = 2
	SignatureSlots         = 3
)

// SlotTitles are the roles expected in each signature slot.
var SlotTitles = [SignatureSlots]string{"Wakil Kepala Sarpras", "Pelaksana", "Kepala Sekolah"}

// BeritaAcara is the minutes of disposal: a header plus the assets disposed and three signatures.
type BeritaAcara struct {
	ID        uint                `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Hari      string              `gorm:"size:16;not null" json:"hari"`
	Tanggal   int                 `gorm:"not null" json:"tanggal"`
	Bulan     string              `gorm:"size:16;not null" json:"bulan"`
	Tahun     int                 `gorm:"not null" json:"tahun"`
	Tempat    string              `gorm:"size:255;not null" json:"tempat"`
	Barang    []BeritaAcaraBarang `gorm:"foreignKey:BeritaAcaraID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"berita_acara_barang"`
	Ttd       []BeritaAcaraTtd    `gorm:"foreignKey:BeritaAcaraID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"berita_acara_ttd"`
}

func (BeritaAcara) TableName() string {
	return "berita_acara"
}

// BeritaAcaraBarang links a berita acara to a disposed asset.
type BeritaAcaraBarang struct {
	ID            uint     `gorm:"primaryKey" json:"id"`
	BeritaAcaraID uint     `gorm:"not null;uniqueIndex:idx_ba_barang" json:"berita_acara_id"`
	SarprasID     uint     `gorm:"not null;index;uniqueIndex:idx_ba_barang" json:"sarpras_id"`
	Sarpras       *Sarpras `gorm:"foreignKey:SarprasID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"sarpras,omitempty"`
}

func (BeritaAcaraBarang) TableName() string {
	return "berita_acara_barang"
}

// BeritaAcaraTtd places a signature into one of the three slots of a berita acara.
type BeritaAcaraTtd struct {
	ID            uint `gorm:"primaryKey" json:"id"`
	BeritaAcaraID uint `gorm:"not null;uniqueIndex:idx_ba_ttd_slot" json:"berita_acara_id"`
	TtdID         uint `gorm:"not null;index" json:"ttd_id"`
	Urutan        int  `gorm:"not null;uniqueIndex:idx_ba_ttd_slot" json:"urutan"`
	Ttd           *Ttd `gorm:"foreignKey:TtdID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"ttd,omitempty"`
}

func (BeritaAcaraTtd) TableName() string {
	return "berita_acara_ttd"
}

// Signer returns the signature placed in slot, or nil.
func (b BeritaAcara) Signer(slot int) *Ttd {
	for _, t := range b.Ttd {
		if t.Urutan == slot {
			return t.Ttd
		}
	}
	return nil
}
