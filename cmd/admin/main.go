package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/dmitrijs2005/taskkeeper/internal/server"
	"github.com/dmitrijs2005/taskkeeper/internal/server/admin"
	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
)

func main() {
	app := admin.NewCLI(admin.Deps{
		LoadConfig:       config.LoadEnvConfig,
		OpenRepositories: server.OpenRepositories,
		Out:              os.Stdout,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Printf("%v", err)
		cancel()
		os.Exit(1)
	}
}
