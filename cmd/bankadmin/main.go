package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/dmitrijs2005/bankapp/internal/admincli"
	"github.com/dmitrijs2005/bankapp/internal/cryptox"
	"github.com/dmitrijs2005/bankapp/internal/flagx"
	"github.com/dmitrijs2005/bankapp/internal/logging"
	"github.com/dmitrijs2005/bankapp/internal/server"
	"github.com/dmitrijs2005/bankapp/internal/server/auth"
	"github.com/dmitrijs2005/bankapp/internal/server/config"
	"github.com/dmitrijs2005/bankapp/internal/server/notify"
	"github.com/dmitrijs2005/bankapp/internal/server/services"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogBackend, cfg.LogLevel, os.Stderr)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}

	repos, closeDB, err := server.OpenRepositories(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer closeDB()

	secret, err := server.Secret(ctx, cfg, logging.Nop{})
	if err != nil {
		log.Printf("%v", err)
		return 1
	}

	users := services.NewUserService(
		repos,
		auth.NewBcryptHasher(cfg.BcryptCost),
		auth.NewResetTokens(cryptox.DeriveKey(secret, "password-reset"), cfg.ResetTokenValidity, nil),
		notify.NewLogPublisher(logger),
		logger,
		cfg,
	)

	app := admincli.NewApp(logger, repos, users, os.Stdin, int(os.Stdin.Fd()), os.Stdout)
	if err := app.Run(ctx, flagx.Positional(os.Args[1:], config.BoolFlags)); err != nil {
		if errors.Is(err, admincli.ErrUsage) {
			return 2
		}
		log.Printf("%v", err)
		return 1
	}
	return 0
}
