package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"stackit/internal/models"
)

const CheckUserKey = "user"

// SignToken mints a bearer token for the user. Token issuance over
// HTTP lives outside this service; this helper exists for tests and
// operational tooling.
func SignToken(secret string, userID uint, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// UserFromToken validates a bearer token and loads the identity it
// names. Shared between the HTTP middleware and the websocket
// handshake, which carries its credential as a query parameter.
func UserFromToken(db *gorm.DB, secret, tokenStr string) (*models.User, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, errors.New("invalid token claims")
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, errors.New("invalid token subject")
	}

	var user models.User
	if err := db.First(&user, uint(userID)).Error; err != nil {
		return nil, errors.New("user not found")
	}
	return &user, nil
}

// LoadUser resolves the Authorization header to a user and sets it on
// the context. Requests without a (valid) token pass through
// anonymously; AuthRequired decides whether that is acceptable.
func LoadUser(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			if user, err := UserFromToken(db, secret, token); err == nil {
				c.Set(CheckUserKey, user)
			}
		}
		c.Next()
	}
}

// AuthRequired ensures an authenticated user is on the context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"kind":  "unauthorized",
				"error": "authentication required",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by LoadUser. Panics
// if called on a route not behind AuthRequired.
func CurrentUser(c *gin.Context) *models.User {
	return c.MustGet(CheckUserKey).(*models.User)
}
