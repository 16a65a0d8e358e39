package admin

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
)

// OverviewStats 概览统计
type OverviewStats struct {
	Users       int `json:"users"`
	Teams       int `json:"teams"`
	Challenges  int `json:"challenges"`
	Submissions int `json:"submissions"`
	Solves      int `json:"solves"`
	SolvesToday int `json:"solvesToday"`
}

// HandleAdminOverview 后台概览统计
func HandleAdminOverview(c *gin.Context, db *sql.DB) {
	var stats OverviewStats

	db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&stats.Users)
	db.QueryRow(`SELECT COUNT(*) FROM teams`).Scan(&stats.Teams)
	db.QueryRow(`SELECT COUNT(*) FROM challenges`).Scan(&stats.Challenges)
	db.QueryRow(`SELECT COUNT(*) FROM submissions`).Scan(&stats.Submissions)
	db.QueryRow(`SELECT COUNT(*) FROM team_solves`).Scan(&stats.Solves)
	db.QueryRow(`SELECT COUNT(*) FROM team_solves WHERE solved_at >= CURRENT_DATE`).Scan(&stats.SolvesToday)

	c.JSON(http.StatusOK, stats)
}
