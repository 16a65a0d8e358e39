package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// userAuthMiddleware JWT认证中间件（所有登录用户）
func userAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 优先从Authorization头获取token，WebSocket场景允许查询参数
		authHeader := c.GetHeader("Authorization")
		var tokenString string
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_TOKEN"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CLAIMS"})
			c.Abort()
			return
		}

		userID, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CLAIMS"})
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("userID", userID)
		c.Set("role", role)
		c.Next()
	}
}

// adminAuthMiddleware JWT认证中间件（仅管理员）
func adminAuthMiddleware(secret []byte) gin.HandlerFunc {
	userAuth := userAuthMiddleware(secret)
	return func(c *gin.Context) {
		userAuth(c)
		if c.IsAborted() {
			return
		}
		if c.GetString("role") != "admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "FORBIDDEN"})
			c.Abort()
			return
		}
	}
}
