package scoring

import (
	"database/sql"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"ctfarena/server/logs"
)

// SubmitFlagRequest 提交flag请求
type SubmitFlagRequest struct {
	Flag string `json:"flag" binding:"required"`
}

// SubmitFlagResponse 提交flag响应
type SubmitFlagResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason"`
	Message  string `json:"message"`
	Points   int    `json:"points,omitempty"`
}

// 错误提交冷却时间（秒）
const wrongSubmitCooldown = 10.0

// BroadcastSolve 解题事件广播函数，由 main 注入
var BroadcastSolve func(teamName, challengeTitle string, points int, solvedAt time.Time)

// HandleSubmitFlag 提交flag
func HandleSubmitFlag(c *gin.Context, db *sql.DB, engine *Engine) {
	challengeID := c.Param("id")
	userID := c.GetString("userID")

	var req SubmitFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "请输入flag"})
		return
	}

	var teamID sql.NullString
	err := db.QueryRow(`SELECT team_id FROM users WHERE id = $1`, userID).Scan(&teamID)
	if err != nil || !teamID.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "NO_TEAM", "message": "您还未加入队伍"})
		return
	}

	var teamStatus string
	db.QueryRow(`SELECT status FROM teams WHERE id = $1`, teamID.String).Scan(&teamStatus)
	if teamStatus == "banned" {
		c.JSON(http.StatusForbidden, gin.H{"error": "TEAM_BANNED", "message": "您的队伍已被封禁"})
		return
	}

	// 错误提交冷却检查 - 使用数据库时间计算避免时区问题
	var elapsedSeconds float64
	err = db.QueryRow(`SELECT EXTRACT(EPOCH FROM (NOW() - submitted_at)) FROM submissions
		WHERE team_id = $1 AND is_correct = false
		ORDER BY submitted_at DESC LIMIT 1`, teamID.String).Scan(&elapsedSeconds)
	if err == nil && elapsedSeconds < wrongSubmitCooldown {
		retryAfter := int(math.Ceil(wrongSubmitCooldown - elapsedSeconds))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      "TOO_FAST",
			"message":    "提交太频繁，请稍后再试",
			"retryAfter": retryAfter,
		})
		return
	}

	result, err := engine.SubmitFlag(c.Request.Context(), userID, teamID.String, challengeID, req.Flag)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotTeamMember):
			c.JSON(http.StatusForbidden, gin.H{"error": "NOT_TEAM_MEMBER", "message": "用户不属于该队伍"})
		case errors.Is(err, ErrChallengeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND", "message": "题目不存在"})
		default:
			// 持久化错误：提交未被消耗，客户端可以安全重试
			log.Error().Err(err).Str("userId", userID).Str("challengeId", challengeID).Msg("submit flag failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "SUBMISSION_FAILED", "message": "提交失败，请重试"})
		}
		return
	}

	resp := SubmitFlagResponse{
		Accepted: result.Accepted,
		Reason:   result.Reason,
		Points:   result.Points,
	}
	switch result.Reason {
	case ReasonCorrect:
		resp.Message = "回答正确！"
	case ReasonAlreadySolved:
		resp.Message = "您的队伍已解出该题"
	default:
		resp.Message = "Flag错误"
	}

	clientIP := c.ClientIP()
	var teamName, challengeTitle string
	db.QueryRow(`SELECT name FROM teams WHERE id = $1`, teamID.String).Scan(&teamName)
	db.QueryRow(`SELECT title FROM challenges WHERE id = $1`, challengeID).Scan(&challengeTitle)

	if result.Accepted {
		logs.WriteLog(db, logs.TypeFlagSubmit, logs.LevelSuccess, &userID, &teamID.String, &challengeID, clientIP,
			"队伍 ["+teamName+"] 解出题目 ["+challengeTitle+"]", map[string]interface{}{
				"points": result.Points,
			})
		if BroadcastSolve != nil {
			go BroadcastSolve(teamName, challengeTitle, result.Points, time.Now())
		}
	} else if result.Reason == ReasonIncorrectFlag {
		logs.WriteLog(db, logs.TypeFlagSubmit, logs.LevelError, &userID, &teamID.String, &challengeID, clientIP,
			"队伍 ["+teamName+"] 提交题目 ["+challengeTitle+"] 的答案 — 错误", nil)
	}

	c.JSON(http.StatusOK, resp)
}

// HandleGetTeamSolves 获取当前队伍已解题目列表
func HandleGetTeamSolves(c *gin.Context, db *sql.DB) {
	userID := c.GetString("userID")

	var teamID sql.NullString
	db.QueryRow(`SELECT team_id FROM users WHERE id = $1`, userID).Scan(&teamID)
	if !teamID.Valid {
		c.JSON(http.StatusOK, gin.H{"solves": []string{}, "totalPoints": 0})
		return
	}

	rows, err := db.Query(`
		SELECT ts.challenge_id, c.title, c.category, c.points, ts.solved_at
		FROM team_solves ts
		JOIN challenges c ON ts.challenge_id = c.id
		WHERE ts.team_id = $1
		ORDER BY ts.solved_at ASC`, teamID.String)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	type SolveInfo struct {
		ChallengeID string `json:"challengeId"`
		Title       string `json:"title"`
		Category    string `json:"category"`
		Points      int    `json:"points"`
		SolvedAt    string `json:"solvedAt"`
	}

	solves := []SolveInfo{}
	totalPoints := 0
	for rows.Next() {
		var s SolveInfo
		var solvedAt time.Time
		if err := rows.Scan(&s.ChallengeID, &s.Title, &s.Category, &s.Points, &solvedAt); err != nil {
			continue
		}
		s.SolvedAt = solvedAt.Format("2006-01-02 15:04:05")
		totalPoints += s.Points
		solves = append(solves, s)
	}

	c.JSON(http.StatusOK, gin.H{"solves": solves, "totalPoints": totalPoints})
}
