// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/kairoscomputer/pkg/commons"
)

//go:embed *.sql
var files embed.FS

// Source exposes the embedded migrations.
func Source() (source.Driver, error) {
	return iofs.New(files, ".")
}

// Up applies every pending migration against a postgres:// URL.
func Up(logger commons.Logger, databaseUrl string) error {
	src, err := Source()
	if err != nil {
		return fmt.Errorf("unable to read migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseUrl)
	if err != nil {
		return fmt.Errorf("unable to initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("unable to apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	logger.Infow("database migrated", "version", version, "dirty", dirty)
	return nil
}
