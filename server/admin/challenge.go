package admin

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ctfarena/server/challenge"
	"ctfarena/server/logs"
)

// ChallengeDetail 题目详情（管理端视图，含flag）
type ChallengeDetail struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Category         string   `json:"category"`
	Difficulty       string   `json:"difficulty"`
	Points           int      `json:"points"`
	Flag             string   `json:"flag"`
	ShortDescription string   `json:"shortDescription"`
	FullDescription  string   `json:"fullDescription"`
	Hints            []string `json:"hints,omitempty"`
	SolveCount       int      `json:"solveCount"`
	CreatedAt        string   `json:"createdAt"`
	UpdatedAt        string   `json:"updatedAt"`
}

// CreateChallengeRequest 创建题目请求
type CreateChallengeRequest struct {
	Title            string   `json:"title" binding:"required"`
	Category         string   `json:"category" binding:"required"`
	Difficulty       string   `json:"difficulty" binding:"required"`
	Points           int      `json:"points" binding:"required"`
	Flag             string   `json:"flag" binding:"required"`
	ShortDescription string   `json:"shortDescription"`
	FullDescription  string   `json:"fullDescription"`
	Hints            []string `json:"hints"`
}

// UpdateChallengeRequest 更新题目请求
type UpdateChallengeRequest struct {
	Title            string   `json:"title"`
	Category         string   `json:"category"`
	Difficulty       string   `json:"difficulty"`
	Points           *int     `json:"points"`
	Flag             string   `json:"flag"`
	ShortDescription *string  `json:"shortDescription"`
	FullDescription  *string  `json:"fullDescription"`
	Hints            []string `json:"hints"`
}

// HandleListChallenges 获取题目列表（含flag）
func HandleListChallenges(c *gin.Context, db *sql.DB) {
	rows, err := db.Query(`
		SELECT c.id, c.title, c.category, c.difficulty, c.points, c.flag,
		       c.short_description, c.full_description, c.hints,
		       (SELECT COUNT(*) FROM team_solves ts WHERE ts.challenge_id = c.id),
		       TO_CHAR(c.created_at, 'YYYY-MM-DD HH24:MI'),
		       TO_CHAR(c.updated_at, 'YYYY-MM-DD HH24:MI')
		FROM challenges c
		ORDER BY c.category, c.points ASC`)
	if err != nil {
		log.Error().Err(err).Msg("admin list challenges failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	challenges := []ChallengeDetail{}
	for rows.Next() {
		var d ChallengeDetail
		var hints []byte
		if err := rows.Scan(&d.ID, &d.Title, &d.Category, &d.Difficulty, &d.Points, &d.Flag,
			&d.ShortDescription, &d.FullDescription, &hints, &d.SolveCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			continue
		}
		if len(hints) > 0 {
			json.Unmarshal(hints, &d.Hints)
		}
		challenges = append(challenges, d)
	}

	c.JSON(http.StatusOK, gin.H{"challenges": challenges})
}

// HandleCreateChallenge 创建题目
func HandleCreateChallenge(c *gin.Context, db *sql.DB) {
	var req CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	if !challenge.ValidCategory(req.Category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CATEGORY", "message": "无效的题目分类"})
		return
	}
	if !challenge.ValidDifficulty(req.Difficulty) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_DIFFICULTY", "message": "难度必须是 Easy/Medium/Hard"})
		return
	}
	if req.Points <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_POINTS", "message": "分值必须为正整数"})
		return
	}
	flag := strings.TrimSpace(req.Flag)
	if flag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_FLAG", "message": "flag不能为空"})
		return
	}

	var hintsJSON []byte
	if len(req.Hints) > 0 {
		hintsJSON, _ = json.Marshal(req.Hints)
	}

	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO challenges (id, title, category, difficulty, points, flag, short_description, full_description, hints)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, req.Title, req.Category, req.Difficulty, req.Points, flag,
		req.ShortDescription, req.FullDescription, hintsJSON)
	if err != nil {
		log.Error().Err(err).Msg("create challenge failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	userID := c.GetString("userID")
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &userID, nil, &id, c.ClientIP(),
		"创建题目 ["+req.Title+"]", nil)

	c.JSON(http.StatusOK, gin.H{"id": id})
}

// HandleUpdateChallenge 更新题目，只更新请求中带的字段
func HandleUpdateChallenge(c *gin.Context, db *sql.DB) {
	challengeID := c.Param("id")

	var req UpdateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var exists int
	db.QueryRow(`SELECT COUNT(*) FROM challenges WHERE id = $1`, challengeID).Scan(&exists)
	if exists == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND", "message": "题目不存在"})
		return
	}

	if req.Title != "" {
		db.Exec(`UPDATE challenges SET title = $1, updated_at = NOW() WHERE id = $2`, req.Title, challengeID)
	}
	if req.Category != "" {
		if !challenge.ValidCategory(req.Category) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CATEGORY", "message": "无效的题目分类"})
			return
		}
		db.Exec(`UPDATE challenges SET category = $1, updated_at = NOW() WHERE id = $2`, req.Category, challengeID)
	}
	if req.Difficulty != "" {
		if !challenge.ValidDifficulty(req.Difficulty) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_DIFFICULTY", "message": "难度必须是 Easy/Medium/Hard"})
			return
		}
		db.Exec(`UPDATE challenges SET difficulty = $1, updated_at = NOW() WHERE id = $2`, req.Difficulty, challengeID)
	}
	if req.Points != nil {
		if *req.Points <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_POINTS", "message": "分值必须为正整数"})
			return
		}
		// 注意：改分值不追溯已得分队伍，榜单按 teams.points 计算
		db.Exec(`UPDATE challenges SET points = $1, updated_at = NOW() WHERE id = $2`, *req.Points, challengeID)
	}
	if req.Flag != "" {
		db.Exec(`UPDATE challenges SET flag = $1, updated_at = NOW() WHERE id = $2`, strings.TrimSpace(req.Flag), challengeID)
	}
	if req.ShortDescription != nil {
		db.Exec(`UPDATE challenges SET short_description = $1, updated_at = NOW() WHERE id = $2`, *req.ShortDescription, challengeID)
	}
	if req.FullDescription != nil {
		db.Exec(`UPDATE challenges SET full_description = $1, updated_at = NOW() WHERE id = $2`, *req.FullDescription, challengeID)
	}
	if req.Hints != nil {
		hintsJSON, _ := json.Marshal(req.Hints)
		db.Exec(`UPDATE challenges SET hints = $1, updated_at = NOW() WHERE id = $2`, hintsJSON, challengeID)
	}

	userID := c.GetString("userID")
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &userID, nil, &challengeID, c.ClientIP(),
		"更新题目配置", nil)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleDeleteChallenge 删除题目（解题记录与提交记录保留）
func HandleDeleteChallenge(c *gin.Context, db *sql.DB) {
	challengeID := c.Param("id")

	var title string
	err := db.QueryRow(`SELECT title FROM challenges WHERE id = $1`, challengeID).Scan(&title)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND", "message": "题目不存在"})
		return
	}

	// 回收已发放的分数并删除解题记录，同一事务内完成，
	// 保证"队伍分数 == 解题集合分值之和"不被破坏。提交审计表只追加，不动。
	tx, err := db.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE teams SET points = points - c.points, updated_at = NOW()
		FROM challenges c
		WHERE c.id = $1 AND teams.id IN (SELECT team_id FROM team_solves WHERE challenge_id = $1)`,
		challengeID); err != nil {
		log.Error().Err(err).Msg("reclaim points failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	if _, err := tx.Exec(`DELETE FROM team_solves WHERE challenge_id = $1`, challengeID); err != nil {
		log.Error().Err(err).Msg("delete team_solves failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	if _, err := tx.Exec(`DELETE FROM challenges WHERE id = $1`, challengeID); err != nil {
		log.Error().Err(err).Msg("delete challenge failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	userID := c.GetString("userID")
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelWarning, &userID, nil, &challengeID, c.ClientIP(),
		"删除题目 ["+title+"]", nil)

	c.JSON(http.StatusOK, gin.H{"success": true})
}
