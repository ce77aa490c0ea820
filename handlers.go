package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"siphp/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	sessionCookie = "session"
	ctxUserKey    = "user"
	ctxSessionKey = "sid"
)

// Column widths of the varchar fields in models.
const (
	maxShort       = 16 // hari, bulan, sarpras.tahun
	maxText        = 255
	maxSpesifikasi = 512
)

type field struct {
	name  string
	value string
	max   int
}

// checkLengths returns a 400 message for the first value longer than its column, counted
// in characters as Postgres does.
func checkLengths(fields ...field) string {
	for _, f := range fields {
		if utf8.RuneCountInString(f.value) > f.max {
			return fmt.Sprintf("%s maksimal %d karakter", f.name, f.max)
		}
	}
	return ""
}

func setupRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/auth/login", loginHandler)
	api.POST("/auth/logout", logoutHandler)
	authGroup := api.Group("")
	authGroup.Use(jwtAuthMiddleware())
	registerAPI(authGroup)
}

// registerAPI mounts every route that needs an authenticated user in the context.
func registerAPI(g *gin.RouterGroup) {
	g.GET("/me", meHandler)
	g.GET("/sidebar", meHandler)
	g.GET("/dashboard", dashboardHandler)

	g.GET("/alasan", listAlasanHandler)
	g.GET("/alasan/:id", getAlasanHandler)
	g.POST("/alasan", createAlasanHandler)
	g.PUT("/alasan/:id", updateAlasanHandler)
	g.DELETE("/alasan/:id", deleteAlasanHandler)

	g.GET("/sarpras", listSarprasHandler)
	g.GET("/sarpras/:id", getSarprasHandler)
	g.POST("/sarpras", createSarprasHandler)
	g.PUT("/sarpras/:id", updateSarprasHandler)
	g.DELETE("/sarpras/:id", deleteSarprasHandler)

	g.GET("/ttd", listTtdHandler)
	g.GET("/ttd/:id", getTtdHandler)
	g.GET("/ttd/:id/foto", ttdFotoHandler)
	g.POST("/ttd", createTtdHandler)
	g.PUT("/ttd/:id", updateTtdHandler)
	g.DELETE("/ttd/:id", deleteTtdHandler)

	g.GET("/berita-acara", listBeritaAcaraHandler)
	g.GET("/berita-acara/:id", getBeritaAcaraHandler)
	g.GET("/berita-acara/:id/pdf", beritaAcaraPDFHandler)
	g.POST("/berita-acara", createBeritaAcaraHandler)
	g.PUT("/berita-acara/:id", updateBeritaAcaraHandler)
	g.DELETE("/berita-acara/:id", deleteBeritaAcaraHandler)

	users := g.Group("/users")
	users.Use(requireAdmin())
	users.GET("", listUsersHandler)
	users.POST("", createUserHandler)
	users.PUT("/:id", updateUserHandler)
	users.DELETE("/:id", deleteUserHandler)
}

// sessionToken reads the session cookie, falling back to a Bearer header for API clients.
func sessionToken(c *gin.Context) string {
	if v, err := c.Cookie(sessionCookie); err == nil && v != "" {
		return v
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := sessionToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		claims, err := parseToken(jwtSecret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		ctx := c.Request.Context()
		s, err := findSession(ctx, claims.SID)
		if err != nil || !s.Active(time.Now()) || s.UserID != claims.UserID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		var user models.User
		if err := db.WithContext(ctx).Preload("Role").First(&user, claims.UserID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		c.Set(ctxUserKey, &user)
		c.Set(ctxSessionKey, claims.SID)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: Admin access required"})
			return
		}
		c.Next()
	}
}

// currentUser returns the user stored by jwtAuthMiddleware.
func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

// pathID parses the :id parameter, answering 400 itself when it is not a positive integer.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID tidak valid"})
		return 0, false
	}
	return uint(id), true
}

// internalError logs err and answers 500 without leaking database details.
func internalError(c *gin.Context, msg string, err error) {
	slog.ErrorContext(c.Request.Context(), msg, "error", err, "path", c.Request.URL.Path)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func dbCtx(c *gin.Context) *gorm.DB {
	return db.WithContext(c.Request.Context())
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

type userResponse struct {
	ID        uint      `json:"id"`
	Nama      string    `json:"nama"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{ID: u.ID, Nama: u.Nama, Email: u.Email, Role: u.RoleName(), CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

func setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookie, value, maxAge, "/", "", appCfg.CookieSecure, true)
}

func loginHandler(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email dan password wajib diisi"})
		return
	}
	ctx := c.Request.Context()
	user, err := Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, errInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Email atau password salah"})
		return
	}
	if err != nil {
		internalError(c, "login lookup failed", err)
		return
	}
	sid, expires, err := createSession(ctx, user.ID, appCfg.SessionTTL)
	if err != nil {
		internalError(c, "failed to create session", err)
		return
	}
	token, err := issueToken(jwtSecret, user, sid, expires)
	if err != nil {
		internalError(c, "failed to sign token", err)
		return
	}
	setSessionCookie(c, token, int(appCfg.SessionTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{"success": true, "user": toUserResponse(user)})
}

// logoutHandler revokes the presented session when it is still valid and always clears the cookie.
func logoutHandler(c *gin.Context) {
	if tokenString := sessionToken(c); tokenString != "" {
		if claims, err := parseToken(jwtSecret, tokenString); err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			if err := revokeSession(ctx, claims.SID); err != nil {
				slog.Warn("failed to revoke session", "user_id", claims.UserID, "error", err)
			}
			cancel()
		}
	}
	setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func meHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "nama": user.Nama, "email": user.Email, "role": user.RoleName()})
}

func dashboardHandler(c *gin.Context) {
	counts := []struct {
		key   string
		model any
	}{
		{"totalUsers", &models.User{}},
		{"totalBeritaAcara", &models.BeritaAcara{}},
		{"totalSarpras", &models.Sarpras{}},
		{"totalAlasan", &models.Alasan{}},
		{"totalTtd", &models.Ttd{}},
	}
	resp := gin.H{}
	for _, ct := range counts {
		var n int64
		if err := dbCtx(c).Model(ct.model).Count(&n).Error; err != nil {
			internalError(c, "dashboard count failed", err)
			return
		}
		resp[ct.key] = n
	}
	c.JSON(http.StatusOK, resp)
}
