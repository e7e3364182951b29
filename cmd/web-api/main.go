// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	web_routers "github.com/kairoscomputer/api/routers"
	"github.com/kairoscomputer/api/web-api/migrations"
	"github.com/kairoscomputer/config"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/connectors"
	"golang.org/x/sync/errgroup"
)

type AppRunner struct {
	E        *gin.Engine
	Cfg      *config.AppConfig
	Logger   commons.Logger
	Postgres connectors.PostgresConnector
	Redis    connectors.RedisConnector
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appRunner := AppRunner{}
	if err := appRunner.ResolveConfig(); err != nil {
		log.Fatalf("unable to resolve config: %v", err)
	}
	if err := appRunner.Logging(); err != nil {
		log.Fatalf("unable to build logger: %v", err)
	}
	defer appRunner.Logger.Sync()

	appRunner.AllConnectors()
	if err := appRunner.Init(ctx); err != nil {
		appRunner.Logger.Fatalf("unable to initialize connectors: %v", err)
	}
	if err := migrations.Up(appRunner.Logger, appRunner.Cfg.PostgresConfig.URL()); err != nil {
		appRunner.Logger.Fatalf("unable to migrate database: %v", err)
	}

	appRunner.Engine()
	appRunner.AllMiddlewares()
	appRunner.AllRouters()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", appRunner.Cfg.Host, appRunner.Cfg.Port),
		Handler:           appRunner.E,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appRunner.Logger.Infof("%s listening on %s", appRunner.Cfg.Name, server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		appRunner.Logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		appRunner.Close(shutdownCtx)
		return err
	})

	if err := g.Wait(); err != nil {
		appRunner.Logger.Errorf("server stopped with error: %v", err)
		os.Exit(1)
	}
}

func (app *AppRunner) ResolveConfig() error {
	v, err := config.InitConfig()
	if err != nil {
		return err
	}
	cfg, err := config.GetApplicationConfig(v)
	if err != nil {
		return err
	}
	app.Cfg = cfg
	return nil
}

func (app *AppRunner) Logging() error {
	logger, err := commons.NewApplicationLogger(
		commons.Name(app.Cfg.Name),
		commons.Path(app.Cfg.LogPath),
		commons.Level(app.Cfg.LogLevel),
	)
	if err != nil {
		return err
	}
	app.Logger = logger
	return nil
}

func (app *AppRunner) AllConnectors() {
	app.Postgres = connectors.NewPostgresConnector(app.Cfg.PostgresConfig, app.Logger)
	app.Redis = connectors.NewRedisConnector(app.Cfg.RedisConfig, app.Logger)
}

func (app *AppRunner) Init(ctx context.Context) error {
	if err := app.Postgres.Connect(ctx); err != nil {
		return err
	}
	// early access de-duplication degrades without redis
	if err := app.Redis.Connect(ctx); err != nil {
		app.Logger.Warnf("redis unavailable: %v", err)
	}
	return nil
}

func (app *AppRunner) Engine() {
	if app.Cfg.Env().IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	app.E = gin.New()
}

func (app *AppRunner) AllMiddlewares() {
	app.E.Use(gin.Recovery())
	app.E.Use(app.requestLogger())
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = app.Cfg.CorsAllowOrigin
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	app.E.Use(cors.New(corsConfig))
}

func (app *AppRunner) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		app.Logger.Debugw("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

func (app *AppRunner) AllRouters() {
	web_routers.HealthCheckRoutes(app.Cfg, app.E, app.Logger, app.Postgres, app.Redis)
	web_routers.WorkflowApiRoute(app.Cfg, app.E, app.Logger, app.Postgres, app.Redis)
	web_routers.EarlyAccessApiRoute(app.Cfg, app.E, app.Logger, app.Postgres, app.Redis)
}

func (app *AppRunner) Close(ctx context.Context) {
	if err := app.Postgres.Disconnect(ctx); err != nil {
		app.Logger.Errorf("error closing postgres: %v", err)
	}
	if err := app.Redis.Disconnect(ctx); err != nil {
		app.Logger.Errorf("error closing redis: %v", err)
	}
}
