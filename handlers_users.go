package main

import (
	"net/http"
	"regexp"
	"strings"

	"siphp/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLen = 6

type userRequest struct {
	Nama     string `json:"nama"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// validate normalises req and returns a message for a 400 answer. On update the password
// may be left blank to keep the current one.
func (req userRequest) validate(creating bool) (userRequest, string) {
	req.Nama = strings.TrimSpace(req.Nama)
	req.Email = normalizeEmail(req.Email)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if req.Nama == "" || req.Email == "" || req.Role == "" || (creating && req.Password == "") {
		if creating {
			return req, "Semua field wajib diisi"
		}
		return req, "Nama, email, dan role wajib diisi"
	}
	if msg := checkLengths(field{"Nama", req.Nama, maxText}, field{"Email", req.Email, maxText}); msg != "" {
		return req, msg
	}
	if !models.ValidRole(req.Role) {
		return req, "Role tidak valid. Gunakan admin atau user"
	}
	if !emailRE.MatchString(req.Email) {
		return req, "Format email tidak valid"
	}
	if req.Password != "" && len(req.Password) < minPasswordLen {
		return req, "Password minimal 6 karakter"
	}
	return req, ""
}

func bindUser(c *gin.Context, creating bool) (userRequest, bool) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Format data tidak valid"})
		return req, false
	}
	req, msg := req.validate(creating)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return req, false
	}
	return req, true
}

// emailTaken reports whether another user (not exceptID) already owns email.
func emailTaken(tx *gorm.DB, email string, exceptID uint) (bool, error) {
	var n int64
	q := tx.Model(&models.User{}).Where("email = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func listUsersHandler(c *gin.Context) {
	var users []models.User
	if err := dbCtx(c).Preload("Role").Order("created_at desc").Find(&users).Error; err != nil {
		internalError(c, "list users failed", err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	c.JSON(http.StatusOK, resp)
}

func createUserHandler(c *gin.Context) {
	req, ok := bindUser(c, true)
	if !ok {
		return
	}
	taken, err := emailTaken(dbCtx(c), req.Email, 0)
	if err != nil {
		internalError(c, "check email failed", err)
		return
	}
	if taken {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email sudah digunakan"})
		return
	}
	role, err := roleByName(dbCtx(c), req.Role)
	if err != nil {
		internalError(c, "resolve role failed", err)
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		internalError(c, "hash password failed", err)
		return
	}
	user := models.User{Nama: req.Nama, Email: req.Email, PasswordHash: hash, RoleID: role.ID, Role: role}
	if err := dbCtx(c).Omit("Role").Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) { // race condition after initial check
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email sudah digunakan"})
			return
		}
		internalError(c, "create user failed", err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(user))
}

func updateUserHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	req, ok := bindUser(c, false)
	if !ok {
		return
	}
	var user models.User
	if err := dbCtx(c).First(&user, id).Error; err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User tidak ditemukan"})
			return
		}
		internalError(c, "get user failed", err)
		return
	}
	taken, err := emailTaken(dbCtx(c), req.Email, id)
	if err != nil {
		internalError(c, "check email failed", err)
		return
	}
	if taken {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email sudah digunakan oleh user lain"})
		return
	}
	role, err := roleByName(dbCtx(c), req.Role)
	if err != nil {
		internalError(c, "resolve role failed", err)
		return
	}
	updates := map[string]any{"nama": req.Nama, "email": req.Email, "role_id": role.ID}
	if req.Password != "" {
		hash, err := hashPassword(req.Password)
		if err != nil {
			internalError(c, "hash password failed", err)
			return
		}
		updates["password_hash"] = hash
	}
	if err := dbCtx(c).Model(&user).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email sudah digunakan oleh user lain"})
			return
		}
		internalError(c, "update user failed", err)
		return
	}
	if err := dbCtx(c).Preload("Role").First(&user, id).Error; err != nil {
		internalError(c, "reload user failed", err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func deleteUserHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if me, ok := currentUser(c); ok && me.ID == id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tidak dapat menghapus akun sendiri"})
		return
	}
	err := dbCtx(c).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return revokeUserSessions(tx, id)
	})
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User tidak ditemukan"})
			return
		}
		internalError(c, "delete user failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User berhasil dihapus"})
}
