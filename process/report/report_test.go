package report

import (
	"bytes"
	"testing"

	"siphp/models"

	qt "github.com/frankban/quicktest"
)

func TestSummarize(t *testing.T) {
	c := qt.New(t)
	rusak := &models.Alasan{Nama: "Rusak berat"}
	records := []models.BeritaAcara{
		{Tahun: 2025, Barang: []models.BeritaAcaraBarang{
			{Sarpras: &models.Sarpras{Jumlah: 3, Alasan: rusak}},
			{Sarpras: &models.Sarpras{Jumlah: 2}},
			{},
		}},
		{Tahun: 2025, Barang: []models.BeritaAcaraBarang{
			{Sarpras: &models.Sarpras{Jumlah: 4, Alasan: rusak}},
		}},
		{Tahun: 2024, Barang: []models.BeritaAcaraBarang{
			{Sarpras: &models.Sarpras{Jumlah: 100}},
		}},
	}

	s := Summarize(2025, records)
	c.Assert(s.Records, qt.Equals, 2)
	c.Assert(s.Items, qt.Equals, 3)
	c.Assert(s.Units, qt.Equals, 9)
	c.Assert(s.PerAlasan, qt.DeepEquals, map[string]int{"Rusak berat": 7, noAlasan: 2})

	var buf bytes.Buffer
	s.Print(&buf)
	c.Assert(buf.String(), qt.Contains, "records=2 items=3 units=9")
	c.Assert(buf.String(), qt.Contains, "Rusak berat")
}
