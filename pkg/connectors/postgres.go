// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gorm/caches/v4"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/configs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

type PostgresConnector interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected(ctx context.Context) bool
	DB(ctx context.Context) *gorm.DB
	Name() string
}

type postgresConnector struct {
	cfg    configs.PostgresConfig
	logger commons.Logger
	db     *gorm.DB
	open   func() gorm.Dialector
}

func NewPostgresConnector(cfg configs.PostgresConfig, logger commons.Logger) PostgresConnector {
	return &postgresConnector{
		cfg:    cfg,
		logger: logger,
		open: func() gorm.Dialector {
			return postgres.Open(cfg.DSN())
		},
	}
}

// NewDialectorConnector wraps an arbitrary gorm dialector, used for sqlite in
// tests and for a pre-opened *sql.DB.
func NewDialectorConnector(dialector gorm.Dialector, logger commons.Logger) PostgresConnector {
	return &postgresConnector{
		logger: logger,
		open:   func() gorm.Dialector { return dialector },
	}
}

func (c *postgresConnector) Name() string {
	return fmt.Sprintf("postgres %s:%d/%s", c.cfg.Host, c.cfg.Port, c.cfg.DBName)
}

func (c *postgresConnector) Connect(ctx context.Context) error {
	start := time.Now()
	db, err := gorm.Open(c.open(), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// concurrent identical reads (workflow polling) share a single query
	if err := db.Use(&caches.Caches{Conf: &caches.Config{Easer: true}}); err != nil {
		return fmt.Errorf("failed to register query easer: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if c.cfg.MaxOpenConnection > 0 {
			sqlDB.SetMaxOpenConns(c.cfg.MaxOpenConnection)
		}
		if c.cfg.MaxIdealConnection > 0 {
			sqlDB.SetMaxIdleConns(c.cfg.MaxIdealConnection)
		}
	}
	c.db = db
	c.logger.Benchmark("PostgresConnector.Connect", time.Since(start))
	return nil
}

func (c *postgresConnector) IsConnected(ctx context.Context) bool {
	if c.db == nil {
		return false
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func (c *postgresConnector) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func (c *postgresConnector) Disconnect(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.logger.Debugf("closing %s", c.Name())
	return sqlDB.Close()
}
