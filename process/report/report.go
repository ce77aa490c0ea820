package report

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"siphp/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const noAlasan = "(tanpa alasan)"

func mustDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set in env")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	return gdb
}

// Summary aggregates the berita acara of one year.
type Summary struct {
	Tahun     int
	Records   int
	Items     int
	Units     int
	PerAlasan map[string]int // units disposed per reason
}

// Summarize folds fully joined records into a Summary. Records from other years are skipped.
func Summarize(tahun int, records []models.BeritaAcara) Summary {
	s := Summary{Tahun: tahun, PerAlasan: map[string]int{}}
	for _, ba := range records {
		if ba.Tahun != tahun {
			continue
		}
		s.Records++
		for _, b := range ba.Barang {
			if b.Sarpras == nil {
				continue
			}
			s.Items++
			s.Units += b.Sarpras.Jumlah
			name := noAlasan
			if b.Sarpras.Alasan != nil {
				name = b.Sarpras.Alasan.Nama
			}
			s.PerAlasan[name] += b.Sarpras.Jumlah
		}
	}
	return s
}

// Print writes s in a fixed text layout.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Report berita acara tahun=%d:\n", s.Tahun)
	fmt.Fprintf(w, "  records=%d items=%d units=%d\n", s.Records, s.Items, s.Units)
	names := make([]string, 0, len(s.PerAlasan))
	for name := range s.PerAlasan {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-30s %d\n", name, s.PerAlasan[name])
	}
}

// RunReport prints the yearly summary and optionally lists the matching records.
func RunReport(tahun int, list bool) {
	gdb := mustDBFromEnv()

	var records []models.BeritaAcara
	err := gdb.Where("tahun = ?", tahun).
		Preload("Barang.Sarpras.Alasan").
		Order("id").
		Find(&records).Error
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}

	Summarize(tahun, records).Print(os.Stdout)

	if list {
		for _, r := range records {
			fmt.Printf("%d|%s, %d %s %d|%s|%d barang|%s\n", r.ID, r.Hari, r.Tanggal, r.Bulan, r.Tahun, r.Tempat, len(r.Barang), r.CreatedAt.Format(time.RFC3339))
		}
	}
}
