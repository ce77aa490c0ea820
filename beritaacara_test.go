package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"siphp/models"

	qt "github.com/frankban/quicktest"
)

func validInput() beritaAcaraInput {
	return beritaAcaraInput{
		Hari: " Senin ", Tanggal: 14, Bulan: "Juli", Tahun: 2025, Tempat: " Ruang TU ",
		BarangIDs: []uint{3, 1, 3, 0, 2, 1},
		TtdIDs:    []uint{7, 8, 9},
	}
}

func TestNormalizeBeritaAcara(t *testing.T) {
	c := qt.New(t)
	in, err := validInput().normalize()
	c.Assert(err, qt.IsNil)
	c.Assert(in.Hari, qt.Equals, "Senin")
	c.Assert(in.Tempat, qt.Equals, "Ruang TU")
	c.Assert(in.BarangIDs, qt.DeepEquals, []uint{3, 1, 2})
	c.Assert(in.TtdIDs, qt.DeepEquals, []uint{7, 8, 9})
}

func TestNormalizeBeritaAcaraCountsCharacters(t *testing.T) {
	c := qt.New(t)
	in := validInput()
	in.Bulan = strings.Repeat("é", 16)
	_, err := in.normalize()
	c.Assert(err, qt.IsNil)
}

func TestNormalizeBeritaAcaraRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*beritaAcaraInput)
		want   string
	}{
		{"blank hari", func(in *beritaAcaraInput) { in.Hari = "  " }, "Hari, tanggal, bulan, tahun, dan tempat wajib diisi"},
		{"missing tahun", func(in *beritaAcaraInput) { in.Tahun = 0 }, "Hari, tanggal, bulan, tahun, dan tempat wajib diisi"},
		{"blank tempat", func(in *beritaAcaraInput) { in.Tempat = "" }, "Hari, tanggal, bulan, tahun, dan tempat wajib diisi"},
		{"tanggal too large", func(in *beritaAcaraInput) { in.Tanggal = 32 }, "Tanggal harus antara 1 dan 31"},
		{"negative tanggal", func(in *beritaAcaraInput) { in.Tanggal = -1 }, "Tanggal harus antara 1 dan 31"},
		{"negative tahun", func(in *beritaAcaraInput) { in.Tahun = -2025 }, "Tahun tidak valid"},
		{"no barang", func(in *beritaAcaraInput) { in.BarangIDs = nil }, "Minimal satu barang harus dipilih"},
		{"only zero barang", func(in *beritaAcaraInput) { in.BarangIDs = []uint{0, 0} }, "Minimal satu barang harus dipilih"},
		{"two signatures", func(in *beritaAcaraInput) { in.TtdIDs = []uint{1, 2} },
			"Harus ada tepat 3 tanda tangan (Wakil Kepala Sarpras, Pelaksana, Kepala Sekolah)"},
		{"four signatures", func(in *beritaAcaraInput) { in.TtdIDs = []uint{1, 2, 3, 4} },
			"Harus ada tepat 3 tanda tangan (Wakil Kepala Sarpras, Pelaksana, Kepala Sekolah)"},
		{"empty slot", func(in *beritaAcaraInput) { in.TtdIDs = []uint{1, 0, 3} }, "Tanda tangan Pelaksana wajib dipilih"},
		{"long hari", func(in *beritaAcaraInput) { in.Hari = strings.Repeat("h", 17) }, "Hari maksimal 16 karakter"},
		{"long bulan", func(in *beritaAcaraInput) { in.Bulan = strings.Repeat("b", 40) }, "Bulan maksimal 16 karakter"},
		{"long tempat", func(in *beritaAcaraInput) { in.Tempat = strings.Repeat("t", 256) }, "Tempat maksimal 255 karakter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			in := validInput()
			tt.mutate(&in)
			_, err := in.normalize()
			var verr validationError
			c.Assert(errors.As(err, &verr), qt.IsTrue)
			c.Assert(verr.msg, qt.Equals, tt.want)
		})
	}
}

func TestReferenceError(t *testing.T) {
	c := qt.New(t)
	c.Assert(referenceError(nil), qt.IsNil)
	other := errors.New("boom")
	c.Assert(referenceError(other), qt.Equals, other)
	var verr validationError
	c.Assert(errors.As(referenceError(errors.New(`insert or update on table "berita_acara_ttd" violates foreign key constraint`)), &verr), qt.IsTrue)
}

func TestBuildDocument(t *testing.T) {
	c := qt.New(t)
	umur := int64(9)
	ba := models.BeritaAcara{
		ID: 4, Hari: "Senin", Tanggal: 14, Bulan: "Juli", Tahun: 2025, Tempat: "Ruang TU",
		CreatedAt: time.Date(2025, 7, 14, 8, 0, 0, 0, time.UTC),
		Barang: []models.BeritaAcaraBarang{
			{SarprasID: 1, Sarpras: &models.Sarpras{ID: 1, Spesifikasi: "Meja", Tahun: "2012", Umur: &umur, SumberDana: "BOS",
				Alasan: &models.Alasan{Nama: "Rusak berat"}, Jumlah: 3}},
			{SarprasID: 2, Sarpras: &models.Sarpras{ID: 2, Spesifikasi: "Kursi", Jumlah: 0}},
			{SarprasID: 3},
		},
		Ttd: []models.BeritaAcaraTtd{
			{Urutan: models.SlotKepalaSekolah, Ttd: &models.Ttd{ID: 30, Jabatan: "Kepala Sekolah", Nama: "Hartono", FotoKey: "k.png"}},
			{Urutan: models.SlotWakilKepalaSarpras, Ttd: &models.Ttd{ID: 10, Jabatan: "Wakasek Sarpras", Nama: "Budi"}},
		},
	}
	var loaded []uint
	load := func(_ context.Context, sig models.Ttd) []byte {
		loaded = append(loaded, sig.ID)
		if sig.FotoKey == "" {
			return nil
		}
		return []byte("png")
	}

	doc := buildDocument(context.Background(), ba, load)
	c.Assert(doc.Hari, qt.Equals, "Senin")
	c.Assert(doc.CreatedAt, qt.Equals, ba.CreatedAt)
	c.Assert(doc.Items, qt.HasLen, 2)
	c.Assert(doc.Items[0].Alasan, qt.Equals, "Rusak berat")
	c.Assert(*doc.Items[0].Umur, qt.Equals, int64(9))
	c.Assert(doc.Items[1].Alasan, qt.Equals, "")
	c.Assert(doc.Items[1].Umur, qt.IsNil)

	c.Assert(doc.Signers[models.SlotWakilKepalaSarpras].Nama, qt.Equals, "Budi")
	c.Assert(doc.Signers[models.SlotWakilKepalaSarpras].Image, qt.IsNil)
	c.Assert(doc.Signers[models.SlotPelaksana], qt.IsNil)
	c.Assert(doc.Signers[models.SlotKepalaSekolah].Image, qt.DeepEquals, []byte("png"))
	c.Assert(loaded, qt.DeepEquals, []uint{10, 30})
}

func TestSignatureKey(t *testing.T) {
	c := qt.New(t)
	c.Assert(signatureKey(models.Ttd{FotoKey: "a.png", FotoTtd: "/uploads/b.png"}), qt.Equals, "a.png")
	c.Assert(signatureKey(models.Ttd{FotoTtd: "https://cdn.example.com/ttd/b.png?v=2"}), qt.Equals, "b.png")
	c.Assert(signatureKey(models.Ttd{}), qt.Equals, "")
}

func TestUserRequestValidate(t *testing.T) {
	c := qt.New(t)
	req, msg := userRequest{Nama: " Ani ", Email: " Ani@Example.com ", Password: "", Role: "User"}.validate(false)
	c.Assert(msg, qt.Equals, "")
	c.Assert(req.Email, qt.Equals, "ani@example.com")
	c.Assert(req.Role, qt.Equals, models.RoleUser)
	c.Assert(req.Nama, qt.Equals, "Ani")

	_, msg = userRequest{Nama: "Ani", Email: "ani@example.com", Password: "abc", Role: "user"}.validate(false)
	c.Assert(msg, qt.Equals, "Password minimal 6 karakter")

	_, msg = userRequest{Email: "ani@example.com", Role: "user"}.validate(false)
	c.Assert(msg, qt.Equals, "Nama, email, dan role wajib diisi")
}
