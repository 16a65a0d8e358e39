package scoreboard

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HandleGetLeaderboard 分页获取排行榜
func HandleGetLeaderboard(c *gin.Context, db *sql.DB, cache *Cache) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	standings, err := cache.Standings(c.Request.Context(), db)
	if err != nil {
		log.Error().Err(err).Msg("load standings failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	teams, totalPages := PageOf(standings, page, pageSize)
	c.JSON(http.StatusOK, gin.H{
		"teams":       teams,
		"totalTeams":  len(standings),
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

// HandleGetTopTeams 获取前几名（领奖台）
func HandleGetTopTeams(c *gin.Context, db *sql.DB, cache *Cache) {
	count, _ := strconv.Atoi(c.DefaultQuery("count", "3"))
	if count < 1 || count > 10 {
		count = 3
	}

	standings, err := cache.Standings(c.Request.Context(), db)
	if err != nil {
		log.Error().Err(err).Msg("load standings failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	if count > len(standings) {
		count = len(standings)
	}
	c.JSON(http.StatusOK, standings[:count])
}

// HandleGetTeamRank 获取某队伍的排名，队伍不存在返回404
func HandleGetTeamRank(c *gin.Context, db *sql.DB, cache *Cache) {
	teamID := c.Param("id")

	standings, err := cache.Standings(c.Request.Context(), db)
	if err != nil {
		log.Error().Err(err).Msg("load standings failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	rank, ok := RankOf(standings, teamID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "TEAM_NOT_FOUND", "message": "队伍不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"teamId": teamID, "rank": rank})
}
