package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"siphp/models"
	"siphp/pkg/bapdf"
	"siphp/pkg/sigimg"

	"gorm.io/gorm"
)

var errBeritaAcaraNotFound = errors.New("berita acara tidak ditemukan")

// validationError carries a message meant for the client as a 400 answer.
type validationError struct {
	msg string
}

func (e validationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return validationError{msg: fmt.Sprintf(format, args...)}
}

// maxSignatureImage bounds what is read from the store for one signature.
const maxSignatureImage = 10 << 20

// beritaAcaraInput is the body of create and update.
type beritaAcaraInput struct {
	Hari      string `json:"hari"`
	Tanggal   int    `json:"tanggal"`
	Bulan     string `json:"bulan"`
	Tahun     int    `json:"tahun"`
	Tempat    string `json:"tempat"`
	BarangIDs []uint `json:"barang_ids"`
	TtdIDs    []uint `json:"ttd_ids"`
}

// normalize trims the header, collapses duplicate asset ids and checks the shape of the
// record. It does not touch the database.
func (in beritaAcaraInput) normalize() (beritaAcaraInput, error) {
	in.Hari = strings.TrimSpace(in.Hari)
	in.Bulan = strings.TrimSpace(in.Bulan)
	in.Tempat = strings.TrimSpace(in.Tempat)
	if in.Hari == "" || in.Tanggal == 0 || in.Bulan == "" || in.Tahun == 0 || in.Tempat == "" {
		return in, invalid("Hari, tanggal, bulan, tahun, dan tempat wajib diisi")
	}
	if msg := checkLengths(
		field{"Hari", in.Hari, maxShort},
		field{"Bulan", in.Bulan, maxShort},
		field{"Tempat", in.Tempat, maxText},
	); msg != "" {
		return in, invalid("%s", msg)
	}
	if in.Tanggal < 1 || in.Tanggal > 31 {
		return in, invalid("Tanggal harus antara 1 dan 31")
	}
	if in.Tahun < 0 {
		return in, invalid("Tahun tidak valid")
	}

	seen := make(map[uint]bool, len(in.BarangIDs))
	barang := make([]uint, 0, len(in.BarangIDs))
	for _, id := range in.BarangIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		barang = append(barang, id)
	}
	if len(barang) == 0 {
		return in, invalid("Minimal satu barang harus dipilih")
	}
	in.BarangIDs = barang

	if len(in.TtdIDs) != models.SignatureSlots {
		return in, invalid("Harus ada tepat 3 tanda tangan (%s)", strings.Join(models.SlotTitles[:], ", "))
	}
	for slot, id := range in.TtdIDs {
		if id == 0 {
			return in, invalid("Tanda tangan %s wajib dipilih", models.SlotTitles[slot])
		}
	}
	return in, nil
}

// checkReferences verifies that every asset and signature in the input exists.
func checkReferences(tx *gorm.DB, in beritaAcaraInput) error {
	var n int64
	if err := tx.Model(&models.Sarpras{}).Where("id IN ?", in.BarangIDs).Count(&n).Error; err != nil {
		return err
	}
	if int(n) != len(in.BarangIDs) {
		return invalid("Barang tidak ditemukan")
	}
	distinct := make(map[uint]bool, len(in.TtdIDs))
	ids := make([]uint, 0, len(in.TtdIDs))
	for _, id := range in.TtdIDs {
		if !distinct[id] {
			distinct[id] = true
			ids = append(ids, id)
		}
	}
	if err := tx.Model(&models.Ttd{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
		return err
	}
	if int(n) != len(ids) {
		return invalid("Tanda tangan tidak ditemukan")
	}
	return nil
}

func insertChildren(tx *gorm.DB, baID uint, in beritaAcaraInput) error {
	barang := make([]models.BeritaAcaraBarang, 0, len(in.BarangIDs))
	for _, id := range in.BarangIDs {
		barang = append(barang, models.BeritaAcaraBarang{BeritaAcaraID: baID, SarprasID: id})
	}
	if err := tx.Create(&barang).Error; err != nil {
		return fmt.Errorf("insert barang: %w", err)
	}
	ttd := make([]models.BeritaAcaraTtd, 0, len(in.TtdIDs))
	for slot, id := range in.TtdIDs {
		ttd = append(ttd, models.BeritaAcaraTtd{BeritaAcaraID: baID, TtdID: id, Urutan: slot})
	}
	if err := tx.Create(&ttd).Error; err != nil {
		return fmt.Errorf("insert ttd: %w", err)
	}
	return nil
}

// referenceError turns a FK violation raised by a concurrent delete into a validation error.
func referenceError(err error) error {
	if isForeignKeyError(err) {
		return invalid("Barang atau tanda tangan tidak ditemukan")
	}
	return err
}

// createBeritaAcara writes the header and both junction sets in one transaction.
func createBeritaAcara(ctx context.Context, in beritaAcaraInput) (uint, error) {
	var id uint
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkReferences(tx, in); err != nil {
			return err
		}
		ba := models.BeritaAcara{Hari: in.Hari, Tanggal: in.Tanggal, Bulan: in.Bulan, Tahun: in.Tahun, Tempat: in.Tempat}
		if err := tx.Create(&ba).Error; err != nil {
			return fmt.Errorf("insert berita acara: %w", err)
		}
		id = ba.ID
		return insertChildren(tx, ba.ID, in)
	})
	if err != nil {
		return 0, referenceError(err)
	}
	return id, nil
}

// updateBeritaAcara rewrites the header and replaces both junction sets in one transaction.
func updateBeritaAcara(ctx context.Context, id uint, in beritaAcaraInput) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ba models.BeritaAcara
		if err := tx.First(&ba, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errBeritaAcaraNotFound
			}
			return err
		}
		if err := checkReferences(tx, in); err != nil {
			return err
		}
		header := map[string]any{"hari": in.Hari, "tanggal": in.Tanggal, "bulan": in.Bulan, "tahun": in.Tahun, "tempat": in.Tempat}
		if err := tx.Model(&models.BeritaAcara{}).Where("id = ?", id).Updates(header).Error; err != nil {
			return fmt.Errorf("update berita acara: %w", err)
		}
		if err := deleteChildren(tx, id); err != nil {
			return err
		}
		return insertChildren(tx, id, in)
	})
	return referenceError(err)
}

func deleteChildren(tx *gorm.DB, id uint) error {
	if err := tx.Where("berita_acara_id = ?", id).Delete(&models.BeritaAcaraBarang{}).Error; err != nil {
		return fmt.Errorf("delete barang: %w", err)
	}
	if err := tx.Where("berita_acara_id = ?", id).Delete(&models.BeritaAcaraTtd{}).Error; err != nil {
		return fmt.Errorf("delete ttd: %w", err)
	}
	return nil
}

// deleteBeritaAcara removes the junction rows and the header together.
func deleteBeritaAcara(ctx context.Context, id uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ba models.BeritaAcara
		if err := tx.First(&ba, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errBeritaAcaraNotFound
			}
			return err
		}
		if err := deleteChildren(tx, id); err != nil {
			return err
		}
		return tx.Delete(&models.BeritaAcara{}, id).Error
	})
}

// joined preloads assets with their reason and signatures ordered by slot.
func joined(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Barang", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Barang.Sarpras.Alasan").
		Preload("Ttd", func(db *gorm.DB) *gorm.DB { return db.Order("urutan ASC") }).
		Preload("Ttd.Ttd")
}

func listBeritaAcara(ctx context.Context) ([]models.BeritaAcara, error) {
	items := []models.BeritaAcara{}
	if err := joined(db.WithContext(ctx)).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func loadBeritaAcara(ctx context.Context, id uint) (*models.BeritaAcara, error) {
	var ba models.BeritaAcara
	if err := joined(db.WithContext(ctx)).First(&ba, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBeritaAcaraNotFound
		}
		return nil, err
	}
	return &ba, nil
}

// signatureImageLoader returns PNG data for a signature, or nil when it has none.
type signatureImageLoader func(ctx context.Context, t models.Ttd) []byte

// storeSignatureImage reads t's image from the store and normalises it to PNG. Any failure
// is logged and yields nil so the document is still produced.
func storeSignatureImage(ctx context.Context, t models.Ttd) []byte {
	key := signatureKey(t)
	if key == "" || store == nil {
		return nil
	}
	rc, err := store.Open(ctx, key)
	if err != nil {
		slog.Warn("signature image unavailable", "ttd_id", t.ID, "key", key, "error", err)
		return nil
	}
	defer rc.Close()
	png, err := sigimg.Normalize(io.LimitReader(rc, maxSignatureImage))
	if err != nil {
		slog.Warn("signature image unreadable", "ttd_id", t.ID, "key", key, "error", err)
		return nil
	}
	return png
}

// buildDocument maps a fully joined record onto the printable document.
func buildDocument(ctx context.Context, ba models.BeritaAcara, load signatureImageLoader) bapdf.Document {
	doc := bapdf.Document{
		Hari:      ba.Hari,
		Tanggal:   ba.Tanggal,
		Bulan:     ba.Bulan,
		Tahun:     ba.Tahun,
		Tempat:    ba.Tempat,
		CreatedAt: ba.CreatedAt,
	}
	for _, b := range ba.Barang {
		if b.Sarpras == nil {
			continue
		}
		s := b.Sarpras
		item := bapdf.Item{
			Spesifikasi: s.Spesifikasi,
			Tahun:       s.Tahun,
			Umur:        s.Umur,
			SumberDana:  s.SumberDana,
			Jumlah:      s.Jumlah,
		}
		if s.Alasan != nil {
			item.Alasan = s.Alasan.Nama
		}
		doc.Items = append(doc.Items, item)
	}
	for slot := 0; slot < models.SignatureSlots; slot++ {
		t := ba.Signer(slot)
		if t == nil {
			continue
		}
		signer := &bapdf.Signer{Jabatan: t.Jabatan, Nama: t.Nama}
		if load != nil {
			signer.Image = load(ctx, *t)
		}
		doc.Signers[slot] = signer
	}
	return doc
}
