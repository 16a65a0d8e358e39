package admin

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"ctfarena/server/logs"
)

// TeamDetail 队伍详情（管理端视图）
type TeamDetail struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Points      int    `json:"points"`
	Status      string `json:"status"`
	MemberCount int    `json:"memberCount"`
	SolveCount  int    `json:"solveCount"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// UpdateTeamRequest 更新队伍请求
type UpdateTeamRequest struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// HandleListTeams 获取队伍列表
func HandleListTeams(c *gin.Context, db *sql.DB) {
	rows, err := db.Query(`
		SELECT t.id, t.name, t.points, t.status,
		       (SELECT COUNT(*) FROM users WHERE team_id = t.id),
		       (SELECT COUNT(*) FROM team_solves WHERE team_id = t.id),
		       TO_CHAR(t.created_at, 'YYYY-MM-DD HH24:MI'),
		       TO_CHAR(t.updated_at, 'YYYY-MM-DD HH24:MI')
		FROM teams t
		ORDER BY t.points DESC, t.name ASC`)
	if err != nil {
		log.Error().Err(err).Msg("admin list teams failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	teams := []TeamDetail{}
	for rows.Next() {
		var t TeamDetail
		if err := rows.Scan(&t.ID, &t.Name, &t.Points, &t.Status,
			&t.MemberCount, &t.SolveCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			continue
		}
		teams = append(teams, t)
	}

	var total, activeCount, bannedCount int64
	db.QueryRow(`SELECT COUNT(*) FROM teams`).Scan(&total)
	db.QueryRow(`SELECT COUNT(*) FROM teams WHERE status = 'active'`).Scan(&activeCount)
	db.QueryRow(`SELECT COUNT(*) FROM teams WHERE status = 'banned'`).Scan(&bannedCount)

	c.JSON(http.StatusOK, gin.H{
		"teams": teams,
		"stats": gin.H{
			"total":       total,
			"activeCount": activeCount,
			"bannedCount": bannedCount,
		},
	})
}

// HandleUpdateTeam 更新队伍（改名 / 封禁 / 解封）
func HandleUpdateTeam(c *gin.Context, db *sql.DB) {
	teamID := c.Param("id")

	var req UpdateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var exists int
	db.QueryRow(`SELECT COUNT(*) FROM teams WHERE id = $1`, teamID).Scan(&exists)
	if exists == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "TEAM_NOT_FOUND", "message": "队伍不存在"})
		return
	}

	if req.Name != "" {
		newName := strings.TrimSpace(req.Name)
		var taken int
		db.QueryRow(`SELECT COUNT(*) FROM teams WHERE name = $1 AND id != $2`, newName, teamID).Scan(&taken)
		if taken > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "NAME_TAKEN", "message": "队名已被占用"})
			return
		}
		if _, err := db.Exec(`UPDATE teams SET name = $1, updated_at = NOW() WHERE id = $2`, newName, teamID); err != nil {
			if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
				c.JSON(http.StatusConflict, gin.H{"error": "NAME_TAKEN", "message": "队名已被占用"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
			return
		}
	}

	if req.Status != "" {
		if req.Status != "active" && req.Status != "banned" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_STATUS", "message": "状态必须是 active 或 banned"})
			return
		}
		if _, err := db.Exec(`UPDATE teams SET status = $1, updated_at = NOW() WHERE id = $2`, req.Status, teamID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
			return
		}
	}

	userID := c.GetString("userID")
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &userID, &teamID, nil, c.ClientIP(),
		"管理员更新队伍信息", map[string]interface{}{"name": req.Name, "status": req.Status})

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleListUsers 获取用户列表
func HandleListUsers(c *gin.Context, db *sql.DB) {
	rows, err := db.Query(`
		SELECT u.id, u.name, u.email, u.role, u.team_id, COALESCE(t.name, ''),
		       TO_CHAR(u.created_at, 'YYYY-MM-DD HH24:MI')
		FROM users u
		LEFT JOIN teams t ON u.team_id = t.id
		ORDER BY u.created_at ASC`)
	if err != nil {
		log.Error().Err(err).Msg("admin list users failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	type UserDetail struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		Email     string  `json:"email"`
		Role      string  `json:"role"`
		TeamID    *string `json:"teamId"`
		TeamName  string  `json:"teamName,omitempty"`
		CreatedAt string  `json:"createdAt"`
	}

	users := []UserDetail{}
	for rows.Next() {
		var u UserDetail
		var teamID sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &teamID, &u.TeamName, &u.CreatedAt); err != nil {
			continue
		}
		if teamID.Valid {
			u.TeamID = &teamID.String
		}
		users = append(users, u)
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}
