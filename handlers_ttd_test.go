package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"sort"
	"sync"
	"testing"

	"siphp/models"
	"siphp/pkg/storage"

	qt "github.com/frankban/quicktest"
	"github.com/go-extras/go-kit/must"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// memStore keeps objects in memory and records deletions.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "/uploads/" + key, nil
}

func (m *memStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// withStore installs s as the signature store for the duration of the test.
func withStore(c *qt.C, s storage.Store) {
	prev := store
	store = s
	c.Cleanup(func() { store = prev })
}

// withWriteFailingDB installs a gorm handle whose reads return existing and whose writes fail
// because nothing listens on the configured port.
func withWriteFailingDB(c *qt.C, existing models.Ttd) {
	gdb := must.Must(gorm.Open(postgres.Open("host=127.0.0.1 port=1 user=siphp dbname=siphp sslmode=disable connect_timeout=1"), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	}))
	c.Assert(gdb.Callback().Query().Replace("gorm:query", func(tx *gorm.DB) {
		if t, ok := tx.Statement.Dest.(*models.Ttd); ok {
			*t = existing
			tx.RowsAffected = 1
		}
	}), qt.IsNil)
	prev := db
	db = gdb
	c.Cleanup(func() { db = prev })
}

func signatureUpload(c *qt.C) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, 10, color.NRGBA{A: 255})
	}
	var buf bytes.Buffer
	c.Assert(png.Encode(&buf, img), qt.IsNil)
	return buf.Bytes()
}

func TestCreateTtdRemovesImageWhenInsertFails(t *testing.T) {
	c := qt.New(t)
	withConfig(c, testConfig())
	mem := newMemStore()
	withStore(c, mem)
	withWriteFailingDB(c, models.Ttd{})
	r := newAPIRouter(testUser(1, models.RoleUser))

	body, ct := multipartBody(c, map[string]string{"jabatan": "Pelaksana", "nama": "Siti"}, signatureUpload(c))
	rec := performRequest(r, http.MethodPost, "/api/ttd", body, "", ct)
	c.Assert(rec.Code, qt.Equals, http.StatusInternalServerError)
	c.Assert(errorMessage(c, rec), qt.Equals, "Internal server error")

	c.Assert(mem.deleted, qt.HasLen, 1)
	c.Assert(mem.keys(), qt.HasLen, 0)
}

func TestUpdateTtdKeepsOldImageWhenUpdateFails(t *testing.T) {
	c := qt.New(t)
	withConfig(c, testConfig())
	mem := newMemStore()
	withStore(c, mem)
	_, err := mem.Put(context.Background(), "old.png", bytes.NewReader([]byte("old")), "image/png")
	c.Assert(err, qt.IsNil)
	withWriteFailingDB(c, models.Ttd{ID: 7, Jabatan: "Pelaksana", Nama: "Siti", FotoTtd: "/uploads/old.png", FotoKey: "old.png"})
	r := newAPIRouter(testUser(1, models.RoleUser))

	body, ct := multipartBody(c, map[string]string{"jabatan": "Pelaksana", "nama": "Siti Aminah"}, signatureUpload(c))
	rec := performRequest(r, http.MethodPut, "/api/ttd/7", body, "", ct)
	c.Assert(rec.Code, qt.Equals, http.StatusInternalServerError)

	c.Assert(mem.deleted, qt.HasLen, 1)
	c.Assert(mem.deleted[0], qt.Not(qt.Equals), "old.png")
	c.Assert(mem.keys(), qt.DeepEquals, []string{"old.png"})
}
