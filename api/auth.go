package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

const subjectKey = "subject"

func parseJWT(jwtStr string, secret string) (*jwt.StandardClaims, error) {
	claims := &jwt.StandardClaims{}
	_, err := jwt.ParseWithClaims(jwtStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	// StandardClaims treats a missing exp as valid
	if claims.ExpiresAt == 0 || time.Now().UTC().Unix() > claims.ExpiresAt {
		return nil, fmt.Errorf("jwt is expired")
	}

	return claims, nil
}

func (m ApiHandler) authMiddleware(c *gin.Context) {
	if m.JwtSecret == "" {
		c.Next()
		return
	}

	header := c.GetHeader("Authorization")
	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if header == "" || tokenStr == header {
		returnErrorJsonCode(fmt.Errorf("missing bearer token"), c, 401)
		return
	}

	claims, err := parseJWT(tokenStr, m.JwtSecret)
	if err != nil {
		returnErrorJsonCode(err, c, 401)
		return
	}

	c.Set(subjectKey, claims.Subject)
	c.Next()
}
