package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"siphp/pkg/bapdf"

	"github.com/gin-gonic/gin"
)

// respondWorkflowError maps errors of the berita acara workflow onto HTTP answers.
func respondWorkflowError(c *gin.Context, msg string, err error) {
	var verr validationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.msg})
	case errors.Is(err, errBeritaAcaraNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Berita acara tidak ditemukan"})
	default:
		internalError(c, msg, err)
	}
}

// bindBeritaAcara parses and validates the body, answering 400 itself on failure.
func bindBeritaAcara(c *gin.Context) (beritaAcaraInput, bool) {
	var req beritaAcaraInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Format data tidak valid"})
		return req, false
	}
	in, err := req.normalize()
	if err != nil {
		respondWorkflowError(c, "validate berita acara", err)
		return in, false
	}
	return in, true
}

func listBeritaAcaraHandler(c *gin.Context) {
	items, err := listBeritaAcara(c.Request.Context())
	if err != nil {
		internalError(c, "list berita acara failed", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func getBeritaAcaraHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ba, err := loadBeritaAcara(c.Request.Context(), id)
	if err != nil {
		respondWorkflowError(c, "get berita acara failed", err)
		return
	}
	c.JSON(http.StatusOK, ba)
}

func createBeritaAcaraHandler(c *gin.Context) {
	in, ok := bindBeritaAcara(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	id, err := createBeritaAcara(ctx, in)
	if err != nil {
		respondWorkflowError(c, "create berita acara failed", err)
		return
	}
	ba, err := loadBeritaAcara(ctx, id)
	if err != nil {
		respondWorkflowError(c, "reload berita acara failed", err)
		return
	}
	c.JSON(http.StatusCreated, ba)
}

func updateBeritaAcaraHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	in, ok := bindBeritaAcara(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := updateBeritaAcara(ctx, id, in); err != nil {
		respondWorkflowError(c, "update berita acara failed", err)
		return
	}
	ba, err := loadBeritaAcara(ctx, id)
	if err != nil {
		respondWorkflowError(c, "reload berita acara failed", err)
		return
	}
	c.JSON(http.StatusOK, ba)
}

func deleteBeritaAcaraHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := deleteBeritaAcara(c.Request.Context(), id); err != nil {
		respondWorkflowError(c, "delete berita acara failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Berita acara berhasil dihapus"})
}

func beritaAcaraPDFHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ba, err := loadBeritaAcara(ctx, id)
	if err != nil {
		respondWorkflowError(c, "load berita acara for pdf failed", err)
		return
	}
	doc := buildDocument(ctx, *ba, storeSignatureImage)
	var buf bytes.Buffer
	if err := bapdf.Render(&buf, doc); err != nil {
		internalError(c, "render pdf failed", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="berita-acara-%d.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
