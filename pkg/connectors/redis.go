// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"context"
	"fmt"

	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/configs"
	"github.com/redis/go-redis/v9"
)

type RedisConnector interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected(ctx context.Context) bool
	GetConnection() *redis.Client
}

type redisConnector struct {
	cfg    configs.RedisConfig
	logger commons.Logger
	client *redis.Client
}

func NewRedisConnector(cfg configs.RedisConfig, logger commons.Logger) RedisConnector {
	return &redisConnector{cfg: cfg, logger: logger}
}

// NewRedisConnectorWithClient wraps an existing client (redismock in tests).
func NewRedisConnectorWithClient(client *redis.Client, logger commons.Logger) RedisConnector {
	return &redisConnector{client: client, logger: logger}
}

func (c *redisConnector) Connect(ctx context.Context) error {
	c.client = redis.NewClient(&redis.Options{
		Addr:     c.cfg.Addr(),
		Password: c.cfg.Password,
		DB:       c.cfg.DB,
		PoolSize: c.cfg.MaxConnection,
	})
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis %s: %w", c.cfg.Addr(), err)
	}
	return nil
}

func (c *redisConnector) IsConnected(ctx context.Context) bool {
	return c.client != nil && c.client.Ping(ctx).Err() == nil
}

func (c *redisConnector) GetConnection() *redis.Client {
	return c.client
}

func (c *redisConnector) Disconnect(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
