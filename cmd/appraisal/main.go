package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appraisal/internal/clock"
	"github.com/smallbiznis/appraisal/internal/config"
	"github.com/smallbiznis/appraisal/internal/observability"
	"github.com/smallbiznis/appraisal/internal/server"
	"github.com/smallbiznis/appraisal/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
