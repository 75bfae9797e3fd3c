package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/accounts/internal/admin/cli"
	"github.com/dmitrijs2005/accounts/internal/server"
	"github.com/dmitrijs2005/accounts/internal/server/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("config error: %v", err)
		return
	}
	// server logs would interleave with prompts
	cfg.LogLevel = "error"

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer app.Close()

	cli.NewApp(app.Accounts(), os.Stdin, os.Stdout).Run(ctx)
}
