package main

import (
	"database/sql"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"ctfarena/server/logs"
)

// ensureAdmin 确保管理员账户存在，账号密码由环境变量控制
func ensureAdmin(db *sql.DB) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	var existingID string
	err = db.QueryRow(`SELECT id FROM users WHERE email = $1`, email).Scan(&existingID)
	if err == sql.ErrNoRows {
		id := uuid.NewString()
		_, err = db.Exec(`INSERT INTO users (id, name, email, password_hash, role) VALUES ($1, 'Admin', $2, $3, 'admin')`,
			id, email, string(hash))
		if err != nil {
			return err
		}
		log.Info().Str("email", email).Msg("created admin user")
		return nil
	}
	if err != nil {
		return err
	}

	// 已存在则重置为管理员并更新密码
	_, err = db.Exec(`UPDATE users SET role = 'admin', password_hash = $1 WHERE id = $2`, string(hash), existingID)
	if err == nil {
		log.Info().Str("email", email).Msg("updated admin user")
	}
	return err
}

// handleRegister 队伍注册：一个事务里创建队伍和1-4名成员
func handleRegister(c *gin.Context, db *sql.DB, secret []byte) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	teamName := strings.TrimSpace(req.TeamName)
	if len(teamName) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_TEAM_NAME", "message": "队名至少3个字符"})
		return
	}
	if len(req.Members) == 0 || len(req.Members) > 4 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_MEMBERS", "message": "队伍需要1到4名成员"})
		return
	}
	for _, m := range req.Members {
		if !strings.Contains(m.Email, "@") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_EMAIL", "message": "邮箱格式错误: " + m.Email})
			return
		}
		if len(m.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "WEAK_PASSWORD", "message": "密码至少8个字符"})
			return
		}
	}

	// 预检队名和邮箱，唯一索引兜底并发抢注
	var taken int
	db.QueryRow(`SELECT COUNT(*) FROM teams WHERE name = $1`, teamName).Scan(&taken)
	if taken > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "NAME_TAKEN", "message": "队名已被占用"})
		return
	}
	for _, m := range req.Members {
		var used int
		db.QueryRow(`SELECT COUNT(*) FROM users WHERE email = $1`, m.Email).Scan(&used)
		if used > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "EMAIL_TAKEN", "message": "邮箱已被注册: " + m.Email})
			return
		}
	}

	tx, err := db.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	defer tx.Rollback()

	teamID := uuid.NewString()
	if _, err := tx.Exec(`INSERT INTO teams (id, name) VALUES ($1, $2)`, teamID, teamName); err != nil {
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			c.JSON(http.StatusConflict, gin.H{"error": "NAME_TAKEN", "message": "队名已被占用"})
			return
		}
		log.Error().Err(err).Msg("insert team failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	created := []User{}
	for _, m := range req.Members {
		hash, err := bcrypt.GenerateFromPassword([]byte(m.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
			return
		}
		userID := uuid.NewString()
		if _, err := tx.Exec(`INSERT INTO users (id, name, email, password_hash, team_id) VALUES ($1, $2, $3, $4, $5)`,
			userID, m.Name, m.Email, string(hash), teamID); err != nil {
			if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
				c.JSON(http.StatusConflict, gin.H{"error": "EMAIL_TAKEN", "message": "邮箱已被注册: " + m.Email})
				return
			}
			log.Error().Err(err).Msg("insert user failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
			return
		}
		created = append(created, User{ID: userID, Name: m.Name, Email: m.Email, Role: "user", TeamID: &teamID})
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	logs.WriteLog(db, logs.TypeRegister, logs.LevelSuccess, &created[0].ID, &teamID, nil, c.ClientIP(),
		"队伍 ["+teamName+"] 注册成功，成员 "+func() string {
			names := make([]string, len(created))
			for i, u := range created {
				names[i] = u.Name
			}
			return strings.Join(names, ", ")
		}(), nil)

	// 第一名成员（队长）直接登录
	token, err := generateJWT(created[0], secret)
	if err != nil {
		log.Error().Err(err).Msg("generate token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"team":  Team{ID: teamID, Name: teamName, Points: 0, Status: "active"},
		"users": created,
	})
}

// handleLogin 处理登录请求
func handleLogin(c *gin.Context, db *sql.DB, secret []byte) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var (
		u            User
		passwordHash string
		teamID       sql.NullString
	)
	err := db.QueryRow(`SELECT id, name, email, role, password_hash, team_id FROM users WHERE email = $1`, req.Email).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &passwordHash, &teamID)

	clientIP := c.ClientIP()

	if err == sql.ErrNoRows {
		logs.WriteLog(db, logs.TypeLogin, logs.LevelError, nil, nil, nil, clientIP,
			"登录失败: 邮箱 ["+req.Email+"] 不存在", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("query user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	if teamID.Valid {
		u.TeamID = &teamID.String
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		logs.WriteLogSimple(db, logs.TypeLogin, logs.LevelError, u.ID, clientIP, "登录失败: 用户 ["+u.Name+"] 密码错误")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS"})
		return
	}

	logs.WriteLogSimple(db, logs.TypeLogin, logs.LevelSuccess, u.ID, clientIP, u.Name+" 登录系统")

	token, err := generateJWT(u, secret)
	if err != nil {
		log.Error().Err(err).Msg("generate token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
}

// generateJWT 生成JWT令牌
func generateJWT(u User, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
	if u.TeamID != nil {
		claims["teamId"] = *u.TeamID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
