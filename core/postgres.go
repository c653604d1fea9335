package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file:// source
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/netresearch/testenv/config"
	"github.com/netresearch/testenv/core/domain"
)

const (
	postgresPort      domain.Port = "5432/tcp"
	postgresInitDir               = "/docker-entrypoint-initdb.d"
	postgresReadyLine             = "database system is ready to accept connections"
)

// PostgresSpec builds the service description of the database.
func PostgresSpec(s config.PostgresSettings) (ServiceSpec, error) {
	spec := ServiceSpec{
		Kind:  ServicePostgres,
		Image: s.ImageRef(),
		Env: []string{
			"POSTGRES_DB=" + s.Database,
			"POSTGRES_USER=" + s.User,
			"POSTGRES_PASSWORD=" + s.Password,
		},
		ExposedPorts:   []domain.Port{postgresPort},
		StartupTimeout: s.StartupTimeout,
		// The server logs the ready line once for the init run and once
		// for the real start.
		Wait: ForAll(
			ForLog(postgresReadyLine).WithOccurrence(2),
			ForSQL(postgresPort, func(host string, port int) string {
				return postgresEndpoint(s, host, port).URI()
			}),
		),
		Endpoint: func(host string, ports map[domain.Port]int) Endpoint {
			return postgresEndpoint(s, host, ports[postgresPort])
		},
	}

	if s.InitScripts != "" {
		dir, err := existingDir(s.InitScripts)
		if err != nil {
			return ServiceSpec{}, fmt.Errorf("init scripts: %w", err)
		}
		spec.Mounts = append(spec.Mounts, domain.Mount{
			Type:     domain.MountTypeBind,
			Source:   dir,
			Target:   postgresInitDir,
			ReadOnly: true,
		})
	}
	return spec, nil
}

func postgresEndpoint(s config.PostgresSettings, host string, port int) *PostgresEndpoint {
	return &PostgresEndpoint{Host: host, Port: port, Database: s.Database, User: s.User, Password: s.Password}
}

// StartPostgres provisions the database and fills s.URL.
func (p *Provisioner) StartPostgres(ctx context.Context, s *config.PostgresSettings) (*ContainerHandle, error) {
	spec, err := PostgresSpec(*s)
	if err != nil {
		return nil, newProvisionError(ProvisionConfigInvalid, string(ServicePostgres), err)
	}

	var migrations string
	if s.Migrations != "" {
		if migrations, err = existingDir(s.Migrations); err != nil {
			return nil, newProvisionError(ProvisionConfigInvalid, string(ServicePostgres), fmt.Errorf("migrations: %w", err))
		}
	}

	h, err := p.Start(ctx, spec)
	if err != nil {
		return nil, err
	}
	if migrations != "" {
		if err := p.migrate(migrations, h.URI); err != nil {
			return nil, newProvisionError(ProvisionStartFailed, string(ServicePostgres), err)
		}
	}
	s.URL = h.URI
	return h, nil
}

func (p *Provisioner) migrate(dir, uri string) error {
	m, err := migrate.New("file://"+filepath.ToSlash(dir), uri)
	if err != nil {
		return fmt.Errorf("open migrations %s: %w", dir, err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			p.logger.Warningf("Closing migrations: %v", errors.Join(srcErr, dbErr))
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations %s: %w", dir, err)
	}
	version, _, _ := m.Version()
	p.logger.Noticef("Database migrated to version %d", version)
	return nil
}

// OpenPostgres opens a connection pool against uri and verifies it.
func OpenPostgres(ctx context.Context, uri string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, fmt.Errorf("parse postgres uri: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func existingDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
