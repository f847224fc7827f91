// Package sessionstore builds the session manager. Sessions live in memory
// unless a Postgres URL is configured, in which case they survive restarts
// and are shared between replicas.
package sessionstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/pgxstore"
	"github.com/alexedwards/scs/v2"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	CookieName = "infralens_session"

	cleanupInterval = 5 * time.Minute
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Options struct {
	Lifetime     time.Duration
	CookieSecure bool
	DatabaseURL  string
}

// Store is the session manager plus the pool backing it, if any.
type Store struct {
	Sessions *scs.SessionManager
	pool     *pgxpool.Pool
}

func New(ctx context.Context, opts Options) (*Store, error) {
	sessions := scs.New()
	if opts.Lifetime > 0 {
		sessions.Lifetime = opts.Lifetime
	}
	sessions.Cookie.Name = CookieName
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.SameSite = http.SameSiteLaxMode
	sessions.Cookie.Secure = opts.CookieSecure
	sessions.Cookie.Path = "/"

	if opts.DatabaseURL == "" {
		return &Store{Sessions: sessions}, nil
	}

	pool, err := pgxpool.New(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("session database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session database: %w", err)
	}
	sessions.Store = pgxstore.NewWithCleanupInterval(pool, cleanupInterval)
	slog.Info("sessions stored in postgres")
	return &Store{Sessions: sessions, pool: pool}, nil
}

// Persistent reports whether sessions are kept in Postgres.
func (s *Store) Persistent() bool {
	return s != nil && s.pool != nil
}

func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	if ps, ok := s.Sessions.Store.(*pgxstore.PostgresStore); ok {
		ps.StopCleanup()
	}
	s.pool.Close()
}

// Migrate creates or upgrades the sessions table. It is a no-op when the
// schema is current.
func Migrate(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("SESSION_DATABASE_URL is required")
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("close migrator", "source_err", srcErr, "db_err", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("no changes to apply")
			return nil
		}
		return err
	}
	slog.Info("migrations applied successfully")
	return nil
}
