package storage_test

import (
	"context"
	"io"
	"regexp"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-extras/go-kit/must"

	"siphp/pkg/config"
	"siphp/pkg/storage"
)

func TestLocalPutOpenDelete(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	st := must.Must(storage.NewLocal(t.TempDir(), "/uploads"))

	url, err := st.Put(ctx, "sig.png", strings.NewReader("PNGDATA"), "image/png")
	c.Assert(err, qt.IsNil)
	c.Assert(url, qt.Equals, "/uploads/sig.png")

	rc, err := st.Open(ctx, "sig.png")
	c.Assert(err, qt.IsNil)
	data := must.Must(io.ReadAll(rc))
	c.Assert(rc.Close(), qt.IsNil)
	c.Assert(string(data), qt.Equals, "PNGDATA")

	c.Assert(st.Delete(ctx, "sig.png"), qt.IsNil)
	_, err = st.Open(ctx, "sig.png")
	c.Assert(err, qt.Equals, storage.ErrNotFound)

	// deleting twice is fine
	c.Assert(st.Delete(ctx, "sig.png"), qt.IsNil)
}

func TestLocalRejectsPathKeys(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	st := must.Must(storage.NewLocal(t.TempDir(), "/uploads"))

	for _, key := range []string{"", "..", "../escape.png", "a/b.png", `a\b.png`} {
		_, err := st.Put(ctx, key, strings.NewReader("x"), "")
		c.Assert(err, qt.ErrorMatches, "invalid object key.*", qt.Commentf("key %q", key))
	}
}

func TestNewSelectsDriver(t *testing.T) {
	c := qt.New(t)

	st, err := storage.New(context.Background(), config.StorageConfig{Driver: config.StorageLocal, UploadBase: t.TempDir(), PublicPath: "/u"})
	c.Assert(err, qt.IsNil)
	_, ok := st.(*storage.Local)
	c.Assert(ok, qt.IsTrue)

	_, err = storage.New(context.Background(), config.StorageConfig{Driver: "ftp"})
	c.Assert(err, qt.ErrorMatches, `unknown storage driver "ftp"`)
}

func TestNewKey(t *testing.T) {
	c := qt.New(t)
	re := regexp.MustCompile(`^\d+-[0-9a-f]{8}\.png$`)

	a, b := storage.NewKey(".png"), storage.NewKey("png")
	c.Assert(re.MatchString(a), qt.IsTrue, qt.Commentf("key %s", a))
	c.Assert(re.MatchString(b), qt.IsTrue, qt.Commentf("key %s", b))
	c.Assert(a, qt.Not(qt.Equals), b)
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/uploads/1700-abc.png", "1700-abc.png"},
		{"https://f002.backblazeb2.com/file/ttd/1700-abc.png", "1700-abc.png"},
		{"https://cdn.example/ttd/1700-abc.png?v=2", "1700-abc.png"},
		{"", ""},
		{"   ", ""},
	}
	c := qt.New(t)
	for _, tt := range tests {
		c.Check(storage.KeyFromURL(tt.in), qt.Equals, tt.want, qt.Commentf("url %q", tt.in))
	}
}
