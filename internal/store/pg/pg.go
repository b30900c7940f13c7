// Package pg provee los repositorios sobre PostgreSQL (pgx). Las
// entidades del engine se guardan con sus claves de búsqueda como columnas
// y el resto del registro como payload jsonb; los consumos single-use se
// implementan con DELETE/UPDATE condicionales RETURNING.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store agrupa los repositorios PostgreSQL sobre un mismo pool.
type Store struct {
	pool *pgxpool.Pool
}

// Config es la configuración de conexión.
type Config struct {
	DSN             string
	MaxConns        int32
	ConnectTimeout  time.Duration
	ApplicationName string
}

// New abre el pool y verifica la conexión.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.ApplicationName != "" {
		pc.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close cierra el pool.
func (s *Store) Close() {
	s.pool.Close()
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
