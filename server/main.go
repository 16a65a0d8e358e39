package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"ctfarena/server/admin"
	"ctfarena/server/challenge"
	"ctfarena/server/logs"
	"ctfarena/server/realtime"
	"ctfarena/server/scoreboard"
	"ctfarena/server/scoring"
	"ctfarena/server/team"
	"ctfarena/server/user"
)

func main() {
	godotenv.Load()
	initLogger(os.Getenv("LOG_LEVEL"))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal().Msg("DATABASE_URL not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal().Msg("JWT_SECRET not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	migrationPath := os.Getenv("MIGRATIONS_PATH")
	if migrationPath == "" {
		migrationPath = "file://db/migrations"
	}
	runMigrations(dsn, migrationPath)

	if err := ensureAdmin(db); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure admin user")
	}

	// Redis 可选，不配置时榜单直接走数据库
	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		cancel()
		log.Info().Str("addr", addr).Msg("redis connected")
	}
	cache := scoreboard.NewCache(rdb)

	engine := scoring.NewEngine(scoring.NewPostgresStore(db))

	// 实时推送：公开的解题/榜单动态，和仅管理员可见的日志流
	liveHub := realtime.NewHub()
	adminHub := realtime.NewHub()

	// 解题成功后推送解题事件和最新榜单
	scoring.BroadcastSolve = func(teamName, challengeTitle string, points int, solvedAt time.Time) {
		liveHub.Broadcast("solve", realtime.SolveEvent{
			TeamName:       teamName,
			ChallengeTitle: challengeTitle,
			Points:         points,
			SolvedAt:       solvedAt.Format("2006-01-02 15:04:05"),
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		cache.Invalidate(ctx)
		if standings, err := scoreboard.LoadStandings(ctx, db); err == nil {
			top, _ := scoreboard.PageOf(standings, 1, 10)
			liveHub.Broadcast("scoreboard", top)
		}
	}

	// 新系统日志推给管理后台
	logs.Broadcast = func(entry logs.LogEntry) {
		adminHub.Broadcast("log", entry)
	}

	r := gin.Default()

	api := r.Group("/api")
	{
		api.POST("/register", func(c *gin.Context) {
			handleRegister(c, db, []byte(jwtSecret))
		})
		api.POST("/login", func(c *gin.Context) {
			handleLogin(c, db, []byte(jwtSecret))
		})

		// ========== 公开的排行榜API（无需认证）==========
		api.GET("/leaderboard", func(c *gin.Context) {
			scoreboard.HandleGetLeaderboard(c, db, cache)
		})
		api.GET("/leaderboard/top", func(c *gin.Context) {
			scoreboard.HandleGetTopTeams(c, db, cache)
		})
		api.GET("/teams/:id/rank", func(c *gin.Context) {
			scoreboard.HandleGetTeamRank(c, db, cache)
		})

		// 解题动态WebSocket实时推送
		api.GET("/live", liveHub.HandleWS)
	}

	// ========== 登录用户API ==========
	authed := api.Group("")
	authed.Use(userAuthMiddleware([]byte(jwtSecret)))
	{
		authed.GET("/challenges", func(c *gin.Context) {
			challenge.HandleListChallenges(c, db)
		})
		authed.GET("/challenges/:id", func(c *gin.Context) {
			challenge.HandleGetChallenge(c, db)
		})
		authed.POST("/challenges/:id/submit", func(c *gin.Context) {
			scoring.HandleSubmitFlag(c, db, engine)
		})

		authed.GET("/team", func(c *gin.Context) {
			team.HandleGetMyTeam(c, db)
		})
		authed.PUT("/team/name", func(c *gin.Context) {
			team.HandleUpdateTeamName(c, db)
		})
		authed.GET("/team/solves", func(c *gin.Context) {
			scoring.HandleGetTeamSolves(c, db)
		})
		authed.GET("/teams/:id/progress", func(c *gin.Context) {
			team.HandleGetTeamProgress(c, db)
		})
		authed.GET("/teams/:id/activity", func(c *gin.Context) {
			team.HandleGetTeamActivity(c, db)
		})
		authed.GET("/teams/:id/stats", func(c *gin.Context) {
			team.HandleGetTeamStats(c, db)
		})

		authed.GET("/profile", func(c *gin.Context) {
			user.HandleGetProfile(c, db, cache)
		})
		authed.GET("/profile/stats", func(c *gin.Context) {
			user.HandleGetUserStats(c, db)
		})
	}

	// ========== 管理后台API ==========
	adminGroup := api.Group("/admin")
	adminGroup.Use(adminAuthMiddleware([]byte(jwtSecret)))
	{
		adminGroup.GET("/overview", func(c *gin.Context) {
			admin.HandleAdminOverview(c, db)
		})

		adminGroup.GET("/challenges", func(c *gin.Context) {
			admin.HandleListChallenges(c, db)
		})
		adminGroup.POST("/challenges", func(c *gin.Context) {
			admin.HandleCreateChallenge(c, db)
		})
		adminGroup.PUT("/challenges/:id", func(c *gin.Context) {
			admin.HandleUpdateChallenge(c, db)
		})
		adminGroup.DELETE("/challenges/:id", func(c *gin.Context) {
			admin.HandleDeleteChallenge(c, db)
		})
		adminGroup.POST("/challenges/import", func(c *gin.Context) {
			admin.HandleImportChallenges(c, db)
		})
		adminGroup.GET("/challenges/import/template", admin.HandleDownloadImportTemplate)

		adminGroup.GET("/teams", func(c *gin.Context) {
			admin.HandleListTeams(c, db)
		})
		adminGroup.PUT("/teams/:id", func(c *gin.Context) {
			admin.HandleUpdateTeam(c, db)
		})
		adminGroup.GET("/users", func(c *gin.Context) {
			admin.HandleListUsers(c, db)
		})

		adminGroup.GET("/logs", func(c *gin.Context) {
			logs.HandleGetLogs(c, db)
		})
		adminGroup.GET("/logs/ws", adminHub.HandleWS)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Info().Str("port", port).Msg("server starting")
	if err := r.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
