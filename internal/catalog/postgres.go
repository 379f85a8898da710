package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/forest-guardian/fmc-pipeline/internal/logging"
)

// PostgresConfig is the connection for the ODC index database.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	MaxConns int32
}

func (c PostgresConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	return u.String()
}

var newPool = pgxpool.NewWithConfig

// PostgresIndex reads dataset records straight from the agdc schema.
type PostgresIndex struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*PostgresIndex, error) {
	return OpenPostgresURL(ctx, cfg.URL(), cfg.MaxConns, logger)
}

func OpenPostgresURL(ctx context.Context, dsn string, maxConns int32, logger *zap.Logger) (*PostgresIndex, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog database config: %w", err)
	}
	if maxConns > 0 {
		pcfg.MaxConns = maxConns
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog database: %w", err)
	}
	return &PostgresIndex{pool: pool, logger: logging.OrNop(logger).Named("catalog")}, nil
}

func (p *PostgresIndex) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}

const datasetQuery = `
SELECT d.metadata::text,
       dt.name,
       COALESCE((
           SELECT l.uri_scheme || ':' || l.uri_body
           FROM agdc.dataset_location l
           WHERE l.dataset_ref = d.id AND l.archived IS NULL
           ORDER BY l.added DESC
           LIMIT 1
       ), '')
FROM agdc.dataset d
JOIN agdc.dataset_type dt ON dt.id = d.dataset_type_ref
WHERE d.id = $1 AND d.archived IS NULL`

func (p *PostgresIndex) Get(ctx context.Context, id string) (*Dataset, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a dataset uuid", ErrNotFound, id)
	}

	var doc, product, location string
	err = p.pool.QueryRow(ctx, datasetQuery, parsed.String()).Scan(&doc, &product, &location)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset %s: %w", id, err)
	}
	p.logger.Debug("dataset resolved",
		zap.String("dataset_id", id),
		zap.String("product", product),
		zap.String("location", location),
	)

	ds, err := ParseDocument([]byte(doc), product, location)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", id, err)
	}
	if ds.ID == "" {
		ds.ID = parsed.String()
	}
	return ds, nil
}
