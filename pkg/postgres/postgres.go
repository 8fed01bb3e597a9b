package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	_defaultMaxPoolSize  = 20
	_defaultMaxOverflow  = 30
	_defaultConnLifetime = time.Hour
	_defaultConnAttempts = 10
	_defaultConnTimeout  = time.Second
)

// Postgres wraps a pgxpool.Pool with the squirrel query builder, the same
// shape every repo in internal/repo/persistent expects via GetExecutor.
type Postgres struct {
	maxPoolSize  int
	maxOverflow  int
	connLifetime time.Duration
	connAttempts int
	connTimeout  time.Duration

	Builder squirrel.StatementBuilderType
	Pool    *pgxpool.Pool
}

func New(url string, opts ...Option) (*Postgres, error) {
	pg := &Postgres{
		maxPoolSize:  _defaultMaxPoolSize,
		maxOverflow:  _defaultMaxOverflow,
		connLifetime: _defaultConnLifetime,
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
	}

	for _, opt := range opts {
		opt(pg)
	}

	pg.Builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("Postgres - New - pgxpool.ParseConfig: %w", err)
	}

	poolCfg.MaxConns = int32(pg.maxPoolSize + pg.maxOverflow)
	poolCfg.MaxConnLifetime = pg.connLifetime

	for pg.connAttempts > 0 {
		pg.Pool, err = pgxpool.NewWithConfig(context.Background(), poolCfg)
		if err == nil {
			err = pg.Pool.Ping(context.Background())
		}
		if err == nil {
			break
		}

		time.Sleep(pg.connTimeout)

		pg.connAttempts--
	}

	if err != nil {
		return nil, fmt.Errorf("Postgres - New - connAttempts == 0: %w", err)
	}

	return pg, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
