package challenge

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// 题目分类
var Categories = []string{
	"Fundamentals",
	"Web",
	"Cryptography",
	"Forensics",
	"Reverse Engineering",
	"Misc",
	"Prompt Engineering",
	"PWN",
}

// 题目难度
var Difficulties = []string{"Easy", "Medium", "Hard"}

// ValidCategory 分类是否合法
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// ValidDifficulty 难度是否合法
func ValidDifficulty(difficulty string) bool {
	for _, d := range Difficulties {
		if d == difficulty {
			return true
		}
	}
	return false
}

// ListItem 题目列表项（不含flag和完整描述）
type ListItem struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Category         string `json:"category"`
	Difficulty       string `json:"difficulty"`
	Points           int    `json:"points"`
	ShortDescription string `json:"shortDescription"`
	SolveCount       int    `json:"solveCount"`
	Solved           bool   `json:"solved"`
}

// Detail 题目详情（不含flag）
type Detail struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Category         string   `json:"category"`
	Difficulty       string   `json:"difficulty"`
	Points           int      `json:"points"`
	ShortDescription string   `json:"shortDescription"`
	FullDescription  string   `json:"fullDescription"`
	Hints            []string `json:"hints,omitempty"`
	SolveCount       int      `json:"solveCount"`
	Solved           bool     `json:"solved"`
}

// HandleListChallenges 获取题目列表，标记当前队伍已解的题
func HandleListChallenges(c *gin.Context, db *sql.DB) {
	userID := c.GetString("userID")

	var teamID sql.NullString
	db.QueryRow(`SELECT team_id FROM users WHERE id = $1`, userID).Scan(&teamID)

	rows, err := db.Query(`
		SELECT c.id, c.title, c.category, c.difficulty, c.points, c.short_description,
		       (SELECT COUNT(*) FROM team_solves ts WHERE ts.challenge_id = c.id) AS solve_count,
		       EXISTS (SELECT 1 FROM team_solves ts WHERE ts.challenge_id = c.id AND ts.team_id = $1) AS solved
		FROM challenges c
		ORDER BY c.category, c.points ASC`, teamID)
	if err != nil {
		log.Error().Err(err).Msg("list challenges failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	challenges := []ListItem{}
	for rows.Next() {
		var item ListItem
		if err := rows.Scan(&item.ID, &item.Title, &item.Category, &item.Difficulty,
			&item.Points, &item.ShortDescription, &item.SolveCount, &item.Solved); err != nil {
			continue
		}
		challenges = append(challenges, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"challenges":   challenges,
		"categories":   Categories,
		"difficulties": Difficulties,
	})
}

// HandleGetChallenge 获取题目详情
func HandleGetChallenge(c *gin.Context, db *sql.DB) {
	challengeID := c.Param("id")
	userID := c.GetString("userID")

	var teamID sql.NullString
	db.QueryRow(`SELECT team_id FROM users WHERE id = $1`, userID).Scan(&teamID)

	var d Detail
	var hints []byte
	err := db.QueryRow(`
		SELECT c.id, c.title, c.category, c.difficulty, c.points, c.short_description, c.full_description, c.hints,
		       (SELECT COUNT(*) FROM team_solves ts WHERE ts.challenge_id = c.id) AS solve_count,
		       EXISTS (SELECT 1 FROM team_solves ts WHERE ts.challenge_id = c.id AND ts.team_id = $2) AS solved
		FROM challenges c WHERE c.id = $1`, challengeID, teamID).
		Scan(&d.ID, &d.Title, &d.Category, &d.Difficulty, &d.Points,
			&d.ShortDescription, &d.FullDescription, &hints, &d.SolveCount, &d.Solved)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND", "message": "题目不存在"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("challengeId", challengeID).Msg("get challenge failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	if len(hints) > 0 {
		json.Unmarshal(hints, &d.Hints)
	}

	c.JSON(http.StatusOK, d)
}
