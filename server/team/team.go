package team

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"ctfarena/server/logs"
)

// Member 队伍成员
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateNameRequest 修改队名请求
type UpdateNameRequest struct {
	Name string `json:"name" binding:"required"`
}

// HandleGetMyTeam 获取当前用户所在队伍及成员
func HandleGetMyTeam(c *gin.Context, db *sql.DB) {
	userID := c.GetString("userID")

	var teamID sql.NullString
	db.QueryRow(`SELECT team_id FROM users WHERE id = $1`, userID).Scan(&teamID)
	if !teamID.Valid {
		c.JSON(http.StatusNotFound, gin.H{"error": "NO_TEAM", "message": "您还未加入队伍"})
		return
	}

	var name, status string
	var points int
	var createdAt time.Time
	err := db.QueryRow(`SELECT name, points, status, created_at FROM teams WHERE id = $1`, teamID.String).
		Scan(&name, &points, &status, &createdAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	rows, err := db.Query(`SELECT id, name, email FROM users WHERE team_id = $1 ORDER BY created_at ASC`, teamID.String)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email); err != nil {
			continue
		}
		members = append(members, m)
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        teamID.String,
		"name":      name,
		"points":    points,
		"status":    status,
		"createdAt": createdAt.Format("2006-01-02 15:04:05"),
		"members":   members,
	})
}

// HandleUpdateTeamName 修改队名，队名全局唯一
func HandleUpdateTeamName(c *gin.Context, db *sql.DB) {
	userID := c.GetString("userID")

	var req UpdateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	newName := strings.TrimSpace(req.Name)
	if len(newName) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "队名至少3个字符"})
		return
	}

	var teamID sql.NullString
	db.QueryRow(`SELECT team_id FROM users WHERE id = $1`, userID).Scan(&teamID)
	if !teamID.Valid {
		c.JSON(http.StatusNotFound, gin.H{"error": "NO_TEAM", "message": "您还未加入队伍"})
		return
	}

	var exists int
	db.QueryRow(`SELECT COUNT(*) FROM teams WHERE name = $1 AND id != $2`, newName, teamID.String).Scan(&exists)
	if exists > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "NAME_TAKEN", "message": "队名已被占用"})
		return
	}

	// 唯一索引兜底，预检与写入之间被抢注时同样报冲突
	_, err := db.Exec(`UPDATE teams SET name = $1, updated_at = NOW() WHERE id = $2`, newName, teamID.String)
	if err != nil {
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			c.JSON(http.StatusConflict, gin.H{"error": "NAME_TAKEN", "message": "队名已被占用"})
			return
		}
		log.Error().Err(err).Msg("update team name failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	logs.WriteLog(db, logs.TypeTeamUpdate, logs.LevelInfo, &userID, &teamID.String, nil, c.ClientIP(),
		"队伍改名为 ["+newName+"]", nil)

	c.JSON(http.StatusOK, gin.H{"success": true, "name": newName})
}

// HandleGetTeamProgress 按分类统计队伍的解题进度
func HandleGetTeamProgress(c *gin.Context, db *sql.DB) {
	teamID := c.Param("id")

	var exists int
	db.QueryRow(`SELECT COUNT(*) FROM teams WHERE id = $1`, teamID).Scan(&exists)
	if exists == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "TEAM_NOT_FOUND", "message": "队伍不存在"})
		return
	}

	rows, err := db.Query(`
		SELECT c.category, COUNT(*) AS total,
		       COUNT(ts.team_id) AS solved
		FROM challenges c
		LEFT JOIN team_solves ts ON ts.challenge_id = c.id AND ts.team_id = $1
		GROUP BY c.category
		ORDER BY c.category`, teamID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	type CategoryProgress struct {
		Total  int `json:"total"`
		Solved int `json:"solved"`
	}
	progress := map[string]CategoryProgress{}
	totalChallenges, solvedCount := 0, 0
	for rows.Next() {
		var category string
		var p CategoryProgress
		if err := rows.Scan(&category, &p.Total, &p.Solved); err != nil {
			continue
		}
		progress[category] = p
		totalChallenges += p.Total
		solvedCount += p.Solved
	}

	completion := 0.0
	if totalChallenges > 0 {
		completion = float64(solvedCount) / float64(totalChallenges) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"totalChallenges":      totalChallenges,
		"solvedCount":          solvedCount,
		"categoryProgress":     progress,
		"completionPercentage": completion,
	})
}

// HandleGetTeamActivity 获取队伍最近解题动态
func HandleGetTeamActivity(c *gin.Context, db *sql.DB) {
	teamID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 50 {
		limit = 10
	}

	rows, err := db.Query(`
		SELECT ts.challenge_id, c.title, c.category, c.points, u.name, ts.solved_at
		FROM team_solves ts
		JOIN challenges c ON ts.challenge_id = c.id
		LEFT JOIN users u ON ts.user_id = u.id
		WHERE ts.team_id = $1
		ORDER BY ts.solved_at DESC
		LIMIT $2`, teamID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	type Activity struct {
		ChallengeID string `json:"challengeId"`
		Title       string `json:"title"`
		Category    string `json:"category"`
		Points      int    `json:"points"`
		SolvedBy    string `json:"solvedBy,omitempty"`
		SolvedAt    string `json:"solvedAt"`
	}

	activity := []Activity{}
	for rows.Next() {
		var a Activity
		var solvedBy sql.NullString
		var solvedAt time.Time
		if err := rows.Scan(&a.ChallengeID, &a.Title, &a.Category, &a.Points, &solvedBy, &solvedAt); err != nil {
			continue
		}
		if solvedBy.Valid {
			a.SolvedBy = solvedBy.String
		}
		a.SolvedAt = solvedAt.Format("2006-01-02 15:04:05")
		activity = append(activity, a)
	}

	c.JSON(http.StatusOK, gin.H{"activity": activity})
}

// HandleGetTeamStats 按分类统计队伍的得分与解题数
func HandleGetTeamStats(c *gin.Context, db *sql.DB) {
	teamID := c.Param("id")

	var exists int
	db.QueryRow(`SELECT COUNT(*) FROM teams WHERE id = $1`, teamID).Scan(&exists)
	if exists == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "TEAM_NOT_FOUND", "message": "队伍不存在"})
		return
	}

	rows, err := db.Query(`
		SELECT c.category, COUNT(*), COALESCE(SUM(c.points), 0)
		FROM team_solves ts
		JOIN challenges c ON ts.challenge_id = c.id
		WHERE ts.team_id = $1
		GROUP BY c.category`, teamID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	solvesByCategory := map[string]int{}
	pointsByCategory := map[string]int{}
	totalSolves := 0
	for rows.Next() {
		var category string
		var solves, points int
		if err := rows.Scan(&category, &solves, &points); err != nil {
			continue
		}
		solvesByCategory[category] = solves
		pointsByCategory[category] = points
		totalSolves += solves
	}

	c.JSON(http.StatusOK, gin.H{
		"totalSolves":      totalSolves,
		"solvesByCategory": solvesByCategory,
		"pointsByCategory": pointsByCategory,
	})
}
