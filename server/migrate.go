package main

import (
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

// runMigrations 启动时应用数据库迁移
func runMigrations(databaseDSN, migrationPath string) {
	migration, err := migrate.New(migrationPath, databaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrate")
	}

	if err := migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal().Err(err).Msg("failed to run migration up")
	}
}
