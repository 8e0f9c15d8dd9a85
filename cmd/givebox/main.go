package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/config"
	"github.com/smallbiznis/givebox/internal/migration"
	"github.com/smallbiznis/givebox/internal/observability"
	"github.com/smallbiznis/givebox/internal/server"
	"github.com/smallbiznis/givebox/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API and the domains behind it
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
