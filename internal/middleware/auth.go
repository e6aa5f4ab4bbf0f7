package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mercata/storefront-api/internal/model"
)

// Identify resolves the caller's cart identity without requiring login.
// A valid Bearer token yields a user identity; otherwise the X-Session-ID
// header yields a guest identity. Requests with neither still pass, and
// handlers decide whether an identity is required.
func Identify(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token, err := jwt.Parse(header[7:], func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err == nil && token.Valid {
				if claims, ok := token.Claims.(jwt.MapClaims); ok {
					sub, _ := claims["sub"].(string)
					if userID, err := uuid.Parse(sub); err == nil {
						role, _ := claims["role"].(string)
						c.Set("userID", userID)
						c.Set("userRole", role)
					}
				}
			}
		}

		if session := strings.TrimSpace(c.GetHeader("X-Session-ID")); session != "" {
			c.Set("sessionID", session)
		}
		c.Next()
	}
}

// RequireAuth rejects requests whose Bearer token did not resolve to a user.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserRole(c) != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uuid.UUID {
	id, _ := c.Get("userID")
	uid, _ := id.(uuid.UUID)
	return uid
}

func GetUserRole(c *gin.Context) string {
	role, _ := c.Get("userRole")
	r, _ := role.(string)
	return r
}

func GetSessionID(c *gin.Context) string {
	sid, _ := c.Get("sessionID")
	s, _ := sid.(string)
	return s
}

// GetOwner builds the cart owner for the current request. A logged-in user
// wins over a session header when both are present.
func GetOwner(c *gin.Context) model.CartOwner {
	if uid := GetUserID(c); uid != uuid.Nil {
		return model.CartOwner{UserID: &uid}
	}
	if sid := GetSessionID(c); sid != "" {
		return model.CartOwner{SessionID: &sid}
	}
	return model.CartOwner{}
}
