package logs

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// 日志类型常量
const (
	TypeRegister   = "register"
	TypeLogin      = "login"
	TypeFlagSubmit = "flag_submit"
	TypeTeamUpdate = "team_update"
	TypeAdminOp    = "admin_op"
)

// 日志级别常量
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

// LogEntry 日志条目
type LogEntry struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Level       string          `json:"level"`
	UserID      *string         `json:"userId,omitempty"`
	UserName    string          `json:"userName,omitempty"`
	TeamID      *string         `json:"teamId,omitempty"`
	TeamName    string          `json:"teamName,omitempty"`
	ChallengeID *string         `json:"challengeId,omitempty"`
	IPAddress   string          `json:"ipAddress,omitempty"`
	Message     string          `json:"message"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   string          `json:"createdAt"`
}

// Broadcast 新日志的实时推送函数，由 main 注入
var Broadcast func(entry LogEntry)

// WriteLog 写入日志（供其他模块调用）
func WriteLog(db *sql.DB, logType, level string, userID, teamID, challengeID *string, ipAddress, message string, details interface{}) error {
	var detailsJSON []byte
	var err error
	if details != nil {
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			detailsJSON = nil
		}
	}

	_, err = db.Exec(`
		INSERT INTO system_logs (type, level, user_id, team_id, challenge_id, ip_address, message, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		logType, level, userID, teamID, challengeID, ipAddress, message, detailsJSON)
	if err != nil {
		log.Error().Err(err).Str("type", logType).Msg("write system log failed")
	}

	if Broadcast != nil {
		var userName, teamName string
		if userID != nil {
			db.QueryRow(`SELECT name FROM users WHERE id = $1`, *userID).Scan(&userName)
		}
		if teamID != nil {
			db.QueryRow(`SELECT name FROM teams WHERE id = $1`, *teamID).Scan(&teamName)
		}
		go Broadcast(LogEntry{
			Type:      logType,
			Level:     level,
			UserID:    userID,
			UserName:  userName,
			TeamID:    teamID,
			TeamName:  teamName,
			IPAddress: ipAddress,
			Message:   message,
		})
	}

	return err
}

// WriteLogSimple 简化版写入日志
func WriteLogSimple(db *sql.DB, logType, level string, userID, ipAddress, message string) error {
	return WriteLog(db, logType, level, &userID, nil, nil, ipAddress, message, nil)
}

// HandleGetLogs 获取日志列表（管理后台API）
func HandleGetLogs(c *gin.Context, db *sql.DB) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 10 || pageSize > 100 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	logType := c.Query("type")
	level := c.Query("level")

	query := `
		SELECT l.id, l.type, l.level, l.user_id, COALESCE(u.name, ''), l.team_id, COALESCE(t.name, ''),
		       l.challenge_id, COALESCE(l.ip_address, ''), l.message, l.details,
		       TO_CHAR(l.created_at, 'YYYY-MM-DD HH24:MI:SS')
		FROM system_logs l
		LEFT JOIN users u ON l.user_id = u.id
		LEFT JOIN teams t ON l.team_id = t.id
		WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM system_logs l WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if logType != "" {
		query += " AND l.type = $" + strconv.Itoa(argIdx)
		countQuery += " AND l.type = $" + strconv.Itoa(argIdx)
		args = append(args, logType)
		argIdx++
	}
	if level != "" {
		query += " AND l.level = $" + strconv.Itoa(argIdx)
		countQuery += " AND l.level = $" + strconv.Itoa(argIdx)
		args = append(args, level)
		argIdx++
	}

	var total int64
	if err := db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	query += " ORDER BY l.created_at DESC LIMIT $" + strconv.Itoa(argIdx) + " OFFSET $" + strconv.Itoa(argIdx+1)
	args = append(args, pageSize, offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		var userID, teamID, challengeID sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.Level, &userID, &e.UserName, &teamID, &e.TeamName,
			&challengeID, &e.IPAddress, &e.Message, &details, &e.CreatedAt); err != nil {
			continue
		}
		if userID.Valid {
			e.UserID = &userID.String
		}
		if teamID.Valid {
			e.TeamID = &teamID.String
		}
		if challengeID.Valid {
			e.ChallengeID = &challengeID.String
		}
		e.Details = details
		entries = append(entries, e)
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":       entries,
		"total":      total,
		"page":       page,
		"totalPages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}
