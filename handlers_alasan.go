package main

import (
	"net/http"
	"strings"

	"siphp/models"

	"github.com/gin-gonic/gin"
)

const msgAlasanInUse = "Alasan masih digunakan di data barang, tidak dapat dihapus"

type alasanRequest struct {
	Nama string `json:"nama"`
}

// bindAlasan parses and validates the body, answering 400 itself on failure.
func bindAlasan(c *gin.Context) (string, bool) {
	var req alasanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Format data tidak valid"})
		return "", false
	}
	nama := strings.TrimSpace(req.Nama)
	if nama == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nama alasan wajib diisi"})
		return "", false
	}
	if msg := checkLengths(field{"Nama alasan", nama, maxText}); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return "", false
	}
	return nama, true
}

func listAlasanHandler(c *gin.Context) {
	var items []models.Alasan
	if err := dbCtx(c).Order("id asc").Find(&items).Error; err != nil {
		internalError(c, "list alasan failed", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func getAlasanHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var a models.Alasan
	if err := dbCtx(c).First(&a, id).Error; err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alasan tidak ditemukan"})
			return
		}
		internalError(c, "get alasan failed", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func createAlasanHandler(c *gin.Context) {
	nama, ok := bindAlasan(c)
	if !ok {
		return
	}
	a := models.Alasan{Nama: nama}
	if err := dbCtx(c).Create(&a).Error; err != nil {
		internalError(c, "create alasan failed", err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func updateAlasanHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	nama, ok := bindAlasan(c)
	if !ok {
		return
	}
	var a models.Alasan
	if err := dbCtx(c).First(&a, id).Error; err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alasan tidak ditemukan"})
			return
		}
		internalError(c, "get alasan failed", err)
		return
	}
	if err := dbCtx(c).Model(&a).Update("nama", nama).Error; err != nil {
		internalError(c, "update alasan failed", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func deleteAlasanHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var a models.Alasan
	if err := dbCtx(c).First(&a, id).Error; err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alasan tidak ditemukan"})
			return
		}
		internalError(c, "get alasan failed", err)
		return
	}
	var used int64
	if err := dbCtx(c).Model(&models.Sarpras{}).Where("alasan_id = ?", id).Count(&used).Error; err != nil {
		internalError(c, "check alasan usage failed", err)
		return
	}
	if used > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgAlasanInUse})
		return
	}
	if err := dbCtx(c).Delete(&a).Error; err != nil {
		// an asset may have been linked after the check
		if isForeignKeyError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgAlasanInUse})
			return
		}
		internalError(c, "delete alasan failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alasan berhasil dihapus"})
}
