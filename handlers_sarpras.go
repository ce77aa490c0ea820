package main

import (
	"net/http"
	"strings"

	"siphp/models"

	"github.com/gin-gonic/gin"
)

const msgSarprasInUse = "Sarpras masih digunakan di berita acara, tidak dapat dihapus"

type sarprasRequest struct {
	Spesifikasi string `json:"spesifikasi"`
	Tahun       string `json:"tahun"`
	Umur        *int64 `json:"umur"`
	SumberDana  string `json:"sumber_dana"`
	AlasanID    *uint  `json:"alasan_id"`
	Jumlah      *int   `json:"jumlah"`
}

// toModel validates req and returns the asset fields, or a message for a 400 answer.
func (req sarprasRequest) toModel() (models.Sarpras, string) {
	if req.Jumlah == nil || *req.Jumlah < 0 {
		return models.Sarpras{}, "Jumlah wajib diisi dan tidak boleh negatif"
	}
	if req.Umur != nil && *req.Umur < 0 {
		return models.Sarpras{}, "Umur tidak boleh negatif"
	}
	s := models.Sarpras{
		Spesifikasi: strings.TrimSpace(req.Spesifikasi),
		Tahun:       strings.TrimSpace(req.Tahun),
		Umur:        req.Umur,
		SumberDana:  strings.TrimSpace(req.SumberDana),
		Jumlah:      *req.Jumlah,
	}
	if msg := checkLengths(
		field{"Spesifikasi", s.Spesifikasi, maxSpesifikasi},
		field{"Tahun", s.Tahun, maxShort},
		field{"Sumber dana", s.SumberDana, maxText},
	); msg != "" {
		return models.Sarpras{}, msg
	}
	if req.AlasanID != nil && *req.AlasanID != 0 {
		id := *req.AlasanID
		s.AlasanID = &id
	}
	return s, ""
}

// bindSarpras parses, validates and checks the referenced alasan, answering itself on failure.
func bindSarpras(c *gin.Context) (models.Sarpras, bool) {
	var req sarprasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Format data tidak valid"})
		return models.Sarpras{}, false
	}
	s, msg := req.toModel()
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return models.Sarpras{}, false
	}
	if s.AlasanID != nil {
		var n int64
		if err := dbCtx(c).Model(&models.Alasan{}).Where("id = ?", *s.AlasanID).Count(&n).Error; err != nil {
			internalError(c, "check alasan failed", err)
			return models.Sarpras{}, false
		}
		if n == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Alasan tidak ditemukan"})
			return models.Sarpras{}, false
		}
	}
	return s, true
}

func loadSarpras(c *gin.Context, id uint) (*models.Sarpras, bool) {
	var s models.Sarpras
	if err := dbCtx(c).Preload("Alasan").First(&s, id).Error; err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sarpras tidak ditemukan"})
			return nil, false
		}
		internalError(c, "get sarpras failed", err)
		return nil, false
	}
	return &s, true
}

func listSarprasHandler(c *gin.Context) {
	var items []models.Sarpras
	if err := dbCtx(c).Preload("Alasan").Order("id asc").Find(&items).Error; err != nil {
		internalError(c, "list sarpras failed", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func getSarprasHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s, ok := loadSarpras(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s)
}

func createSarprasHandler(c *gin.Context) {
	s, ok := bindSarpras(c)
	if !ok {
		return
	}
	if err := dbCtx(c).Create(&s).Error; err != nil {
		if isForeignKeyError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Alasan tidak ditemukan"})
			return
		}
		internalError(c, "create sarpras failed", err)
		return
	}
	created, ok := loadSarpras(c, s.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, created)
}

func updateSarprasHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	in, ok := bindSarpras(c)
	if !ok {
		return
	}
	if _, ok := loadSarpras(c, id); !ok {
		return
	}
	updates := map[string]any{
		"spesifikasi": in.Spesifikasi,
		"tahun":       in.Tahun,
		"umur":        in.Umur,
		"sumber_dana": in.SumberDana,
		"alasan_id":   in.AlasanID,
		"jumlah":      in.Jumlah,
	}
	if err := dbCtx(c).Model(&models.Sarpras{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		if isForeignKeyError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Alasan tidak ditemukan"})
			return
		}
		internalError(c, "update sarpras failed", err)
		return
	}
	updated, ok := loadSarpras(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, updated)
}

func deleteSarprasHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := loadSarpras(c, id); !ok {
		return
	}
	var used int64
	if err := dbCtx(c).Model(&models.BeritaAcaraBarang{}).Where("sarpras_id = ?", id).Count(&used).Error; err != nil {
		internalError(c, "check sarpras usage failed", err)
		return
	}
	if used > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgSarprasInUse})
		return
	}
	if err := dbCtx(c).Delete(&models.Sarpras{}, id).Error; err != nil {
		if isForeignKeyError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgSarprasInUse})
			return
		}
		internalError(c, "delete sarpras failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sarpras berhasil dihapus"})
}
