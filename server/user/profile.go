package user

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"ctfarena/server/scoreboard"
)

// HandleGetProfile 获取个人主页数据：用户、队伍、排名、称号、最近动态
func HandleGetProfile(c *gin.Context, db *sql.DB, cache *scoreboard.Cache) {
	userID := c.GetString("userID")

	var name, email string
	var teamID sql.NullString
	var createdAt time.Time
	err := db.QueryRow(`SELECT name, email, team_id, created_at FROM users WHERE id = $1`, userID).
		Scan(&name, &email, &teamID, &createdAt)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "USER_NOT_FOUND", "message": "用户不存在"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("get profile failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	resp := gin.H{
		"id":           userID,
		"name":         name,
		"email":        email,
		"registeredAt": createdAt.Format("2006-01-02 15:04:05"),
	}

	if teamID.Valid {
		var teamName string
		var points int
		db.QueryRow(`SELECT name, points FROM teams WHERE id = $1`, teamID.String).Scan(&teamName, &points)

		var rank interface{}
		standings, err := cache.Standings(c.Request.Context(), db)
		if err == nil {
			if r, ok := scoreboard.RankOf(standings, teamID.String); ok {
				rank = r
			}
		}

		resp["team"] = gin.H{
			"id":     teamID.String,
			"name":   teamName,
			"points": points,
			"title":  TitleFor(points),
		}
		resp["rank"] = rank
	}

	// 用户最近的正确提交
	rows, err := db.Query(`
		SELECT s.challenge_id, c.title, c.points, s.submitted_at
		FROM submissions s
		JOIN challenges c ON s.challenge_id = c.id
		WHERE s.user_id = $1 AND s.is_correct = true
		ORDER BY s.submitted_at DESC
		LIMIT 10`, userID)
	if err == nil {
		defer rows.Close()
		type Activity struct {
			ChallengeID string `json:"challengeId"`
			Title       string `json:"title"`
			Points      int    `json:"points"`
			Timestamp   string `json:"timestamp"`
		}
		activity := []Activity{}
		for rows.Next() {
			var a Activity
			var ts time.Time
			if err := rows.Scan(&a.ChallengeID, &a.Title, &a.Points, &ts); err != nil {
				continue
			}
			a.Timestamp = ts.Format("2006-01-02 15:04:05")
			activity = append(activity, a)
		}
		resp["recentActivity"] = activity
	}

	c.JSON(http.StatusOK, resp)
}

// HandleGetUserStats 个人统计：提交数、正确数、成功率、对队伍的贡献占比
func HandleGetUserStats(c *gin.Context, db *sql.DB) {
	userID := c.GetString("userID")

	var totalAttempts, successfulSolves int
	db.QueryRow(`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_correct) FROM submissions WHERE user_id = $1`, userID).
		Scan(&totalAttempts, &successfulSolves)

	successRate := 0.0
	if totalAttempts > 0 {
		successRate = float64(successfulSolves) / float64(totalAttempts) * 100
	}

	// 该用户为队伍拿下的分数占队伍总分的比例
	contribution := 0.0
	var teamID sql.NullString
	db.QueryRow(`SELECT team_id FROM users WHERE id = $1`, userID).Scan(&teamID)
	if teamID.Valid {
		var teamPoints, userPoints int
		db.QueryRow(`SELECT points FROM teams WHERE id = $1`, teamID.String).Scan(&teamPoints)
		db.QueryRow(`
			SELECT COALESCE(SUM(c.points), 0)
			FROM team_solves ts
			JOIN challenges c ON ts.challenge_id = c.id
			WHERE ts.team_id = $1 AND ts.user_id = $2`, teamID.String, userID).Scan(&userPoints)
		if teamPoints > 0 {
			contribution = float64(userPoints) / float64(teamPoints) * 100
		}
	}

	solvesByCategory := map[string]int{}
	rows, err := db.Query(`
		SELECT c.category, COUNT(DISTINCT s.challenge_id)
		FROM submissions s
		JOIN challenges c ON s.challenge_id = c.id
		WHERE s.user_id = $1 AND s.is_correct = true
		GROUP BY c.category`, userID)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var category string
			var count int
			if err := rows.Scan(&category, &count); err != nil {
				continue
			}
			solvesByCategory[category] = count
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"totalAttempts":    totalAttempts,
		"successfulSolves": successfulSolves,
		"successRate":      successRate,
		"teamContribution": contribution,
		"solvesByCategory": solvesByCategory,
	})
}
