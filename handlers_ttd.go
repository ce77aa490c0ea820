package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"siphp/models"
	"siphp/pkg/sigimg"
	"siphp/pkg/storage"

	"github.com/gin-gonic/gin"
)

const (
	msgTtdInUse     = "TTD masih digunakan di berita acara, tidak dapat dihapus"
	ttdFileField    = "foto_ttd"
	multipartMemory = 8 << 20
	// room for the text fields and multipart framing around the file
	multipartSlack = 1 << 20
)

// ttdForm is the validated multipart body of create and update.
type ttdForm struct {
	Jabatan string
	Nama    string
	File    *multipart.FileHeader
}

// bindTtdForm parses the multipart body, answering 400 itself on failure.
func bindTtdForm(c *gin.Context) (ttdForm, bool) {
	maxBytes := appCfg.Storage.MaxBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartSlack)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusBadRequest, gin.H{"error": fileTooLargeMessage(maxBytes)})
			return ttdForm{}, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Format data tidak valid"})
		return ttdForm{}, false
	}
	f := ttdForm{
		Jabatan: strings.TrimSpace(c.PostForm("jabatan")),
		Nama:    strings.TrimSpace(c.PostForm("nama")),
	}
	if f.Jabatan == "" || f.Nama == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Jabatan dan nama wajib diisi"})
		return ttdForm{}, false
	}
	if msg := checkLengths(field{"Jabatan", f.Jabatan, maxText}, field{"Nama", f.Nama, maxText}); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return ttdForm{}, false
	}
	fh, err := c.FormFile(ttdFileField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Format data tidak valid"})
		return ttdForm{}, false
	case fh.Size > maxBytes:
		c.JSON(http.StatusBadRequest, gin.H{"error": fileTooLargeMessage(maxBytes)})
		return ttdForm{}, false
	case fh.Size > 0:
		f.File = fh
	}
	return f, true
}

func fileTooLargeMessage(maxBytes int64) string {
	return fmt.Sprintf("Ukuran file maksimal %dMB", maxBytes>>20)
}

// normalizeUpload turns the uploaded file into the stored PNG, answering 400 itself when
// it is not an image.
func normalizeUpload(c *gin.Context, fh *multipart.FileHeader) ([]byte, bool) {
	f, err := fh.Open()
	if err != nil {
		internalError(c, "open upload failed", err)
		return nil, false
	}
	defer f.Close()
	png, err := sigimg.Normalize(f)
	if errors.Is(err, sigimg.ErrNotImage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File harus berupa gambar"})
		return nil, false
	}
	if errors.Is(err, sigimg.ErrTooLarge) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dimensi gambar terlalu besar"})
		return nil, false
	}
	if err != nil {
		internalError(c, "normalize signature failed", err)
		return nil, false
	}
	return png, true
}

func putSignature(ctx context.Context, png []byte) (key, url string, err error) {
	key = storage.NewKey("png")
	url, err = store.Put(ctx, key, bytes.NewReader(png), "image/png")
	if err != nil {
		return "", "", fmt.Errorf("store signature: %w", err)
	}
	return key, url, nil
}

// signatureKey returns the object key of t's image; rows imported without a key fall back
// to the last segment of the public URL.
func signatureKey(t models.Ttd) string {
	if t.FotoKey != "" {
		return t.FotoKey
	}
	return storage.KeyFromURL(t.FotoTtd)
}

// dropObject deletes a stored image after the row no longer points at it. Failures only leave
// an orphan behind, so they are logged.
func dropObject(key string) {
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete signature object", "key", key, "error", err)
	}
}

func loadTtd(c *gin.Context, id uint) (*models.Ttd, bool) {
	var t models.Ttd
	if err := dbCtx(c).First(&t, id).Error; err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "TTD tidak ditemukan"})
			return nil, false
		}
		internalError(c, "get ttd failed", err)
		return nil, false
	}
	return &t, true
}

func listTtdHandler(c *gin.Context) {
	var items []models.Ttd
	if err := dbCtx(c).Order("id asc").Find(&items).Error; err != nil {
		internalError(c, "list ttd failed", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func getTtdHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, ok := loadTtd(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, t)
}

func createTtdHandler(c *gin.Context) {
	form, ok := bindTtdForm(c)
	if !ok {
		return
	}
	t := models.Ttd{Jabatan: form.Jabatan, Nama: form.Nama}
	if form.File != nil {
		png, ok := normalizeUpload(c, form.File)
		if !ok {
			return
		}
		key, url, err := putSignature(c.Request.Context(), png)
		if err != nil {
			internalError(c, "upload signature failed", err)
			return
		}
		t.FotoKey, t.FotoTtd = key, url
	}
	if err := dbCtx(c).Create(&t).Error; err != nil {
		dropObject(t.FotoKey)
		internalError(c, "create ttd failed", err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func updateTtdHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	form, ok := bindTtdForm(c)
	if !ok {
		return
	}
	t, ok := loadTtd(c, id)
	if !ok {
		return
	}
	updates := map[string]any{"jabatan": form.Jabatan, "nama": form.Nama}
	oldKey, newKey := "", ""
	if form.File != nil {
		png, ok := normalizeUpload(c, form.File)
		if !ok {
			return
		}
		key, url, err := putSignature(c.Request.Context(), png)
		if err != nil {
			internalError(c, "upload signature failed", err)
			return
		}
		oldKey, newKey = signatureKey(*t), key
		updates["foto_ttd"], updates["foto_key"] = url, key
	}
	if err := dbCtx(c).Model(&models.Ttd{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		dropObject(newKey)
		internalError(c, "update ttd failed", err)
		return
	}
	dropObject(oldKey)
	updated, ok := loadTtd(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, updated)
}

func deleteTtdHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, ok := loadTtd(c, id)
	if !ok {
		return
	}
	var used int64
	if err := dbCtx(c).Model(&models.BeritaAcaraTtd{}).Where("ttd_id = ?", id).Count(&used).Error; err != nil {
		internalError(c, "check ttd usage failed", err)
		return
	}
	if used > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgTtdInUse})
		return
	}
	if err := dbCtx(c).Delete(&models.Ttd{}, id).Error; err != nil {
		if isForeignKeyError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgTtdInUse})
			return
		}
		internalError(c, "delete ttd failed", err)
		return
	}
	dropObject(signatureKey(*t))
	c.JSON(http.StatusOK, gin.H{"message": "TTD berhasil dihapus"})
}

func ttdFotoHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, ok := loadTtd(c, id)
	if !ok {
		return
	}
	key := signatureKey(*t)
	if key == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "TTD tidak memiliki gambar"})
		return
	}
	rc, err := store.Open(c.Request.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Gambar TTD tidak ditemukan"})
		return
	}
	if err != nil {
		internalError(c, "open signature failed", err)
		return
	}
	defer rc.Close()
	c.Header("Content-Type", "image/png")
	c.Header("Cache-Control", "private, max-age=300")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		slog.Warn("stream signature failed", "ttd_id", id, "error", err)
	}
}
