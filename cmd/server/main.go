package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/educlub/enroll"
	"github.com/educlub/enroll/social"
	"github.com/educlub/enroll/social/providers/github"
	"github.com/educlub/enroll/social/providers/google"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run(ctx context.Context, cfg *Config) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	if err := enroll.CreateSchema(ctx, db); err != nil {
		return err
	}

	logger := enroll.DefaultLogger()
	repos := enroll.NewRepositoryManager(db)
	sink := enroll.NewBunActivitySink(db)

	hasher := enroll.NewPasswordHasher(enroll.WithHasherLogger(logger))
	tokens := enroll.NewTokenService([]byte(cfg.SigningKey), cfg.TokenExpiration, cfg.Issuer, cfg.Audience, logger)

	registrar := enroll.NewRegistrar(repos,
		enroll.WithRegistrarActivitySink(sink),
		enroll.WithRegistrarLogger(logger),
	)

	machine := enroll.NewStudentStateMachine(repos.Students(),
		enroll.WithStateMachineActivitySink(sink),
		enroll.WithStateMachineLogger(logger),
	)

	identity := enroll.NewIdentityService(repos, hasher, tokens,
		enroll.WithIdentityActivitySink(sink),
		enroll.WithIdentityLogger(logger),
		enroll.WithIdentityStateMachine(machine),
	)

	app := fiber.New(fiber.Config{
		AppName:      "enroll",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	controller := enroll.NewController(registrar, identity, tokens, cfg,
		enroll.WithControllerLogger(logger),
	)
	controller.RegisterRoutes(app)

	var providers []social.Provider
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		providers = append(providers, google.New(google.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			CallbackURL:  cfg.GoogleCallbackURL,
		}))
	}
	if cfg.GithubClientID != "" && cfg.GithubClientSecret != "" {
		providers = append(providers, github.New(github.Config{
			ClientID:     cfg.GithubClientID,
			ClientSecret: cfg.GithubClientSecret,
			CallbackURL:  cfg.GithubCallbackURL,
		}))
	}

	if len(providers) > 0 {
		opts := []social.AuthOption{
			social.WithActivitySink(sink),
			social.WithLogger(logger),
		}
		for _, provider := range providers {
			opts = append(opts, social.WithProvider(provider))
		}

		authenticator := social.NewAuthenticator(repos.Students(), tokens,
			social.AuthConfig{
				DefaultRedirectURL: cfg.SuccessRedirect,
				StateHMACKey:       []byte(cfg.StateHMACKey),
				StateTTL:           cfg.StateTTL,
			},
			opts...,
		)

		socialController := social.NewHTTPController(authenticator, social.HTTPConfig{
			SessionConfig:   cfg,
			SuccessRedirect: cfg.SuccessRedirect,
			ErrorRedirect:   cfg.ErrorRedirect,
			Logger:          logger,
		})
		socialController.RegisterRoutes(app)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Addr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	case err := <-errCh:
		return err
	}
}
