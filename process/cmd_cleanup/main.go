package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// target is one class of rows removed by the cleanup. from is the FROM/WHERE tail shared by
// the count and the delete; cutoff marks statements taking the grace cutoff as $1.
type target struct {
	name   string
	from   string
	cutoff bool
}

var targets = []target{
	{"sessions", `FROM sessions WHERE (expires_at < $1) OR (revoked AND updated_at < $1)`, true},
	// junction rows whose parent disappeared outside the API (manual SQL, restored dumps)
	{"orphan barang", `FROM berita_acara_barang b WHERE NOT EXISTS (SELECT 1 FROM berita_acara p WHERE p.id = b.berita_acara_id)`, false},
	{"orphan ttd", `FROM berita_acara_ttd t WHERE NOT EXISTS (SELECT 1 FROM berita_acara p WHERE p.id = t.berita_acara_id)`, false},
}

func statement(t target, dryRun bool) string {
	if dryRun {
		return "SELECT count(*) " + t.from
	}
	return "DELETE " + t.from
}

// run counts (dryRun) or deletes every target and returns the affected rows per target.
func run(db *sql.DB, cutoff time.Time, dryRun bool) ([]int64, error) {
	out := make([]int64, len(targets))
	for i, t := range targets {
		var args []any
		if t.cutoff {
			args = append(args, cutoff)
		}
		q := statement(t, dryRun)
		if dryRun {
			if err := db.QueryRow(q, args...).Scan(&out[i]); err != nil {
				return nil, fmt.Errorf("count %s: %w", t.name, err)
			}
			continue
		}
		res, err := db.Exec(q, args...)
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", t.name, err)
		}
		out[i], _ = res.RowsAffected()
	}
	return out, nil
}

func summary(counts []int64) string {
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = fmt.Sprintf("%s=%d", t.name, counts[i])
	}
	return strings.Join(parts, ", ")
}

func main() {
	grace := flag.Duration("grace", 24*time.Hour, "keep expired or revoked sessions this long before deleting them")
	dryRun := flag.Bool("dry-run", false, "only count what would be deleted")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().Add(-*grace)
	counts, err := run(db, cutoff, *dryRun)
	if err != nil {
		log.Fatalf("cleanup: %v", err)
	}
	if *dryRun {
		fmt.Printf("dry-run (cutoff %s): would delete %s\n", cutoff.Format(time.RFC3339), summary(counts))
		return
	}
	fmt.Printf("cleanup done: deleted %s\n", summary(counts))
}
