package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/logging"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/repomanager"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// openDB is a test seam for sql.Open.
var openDB = sql.Open

// OpenRepositories connects the configured store. An empty dsn selects the
// in-memory store. The returned close func releases the connection pool.
func OpenRepositories(ctx context.Context, dsn string, logger logging.Logger) (repomanager.RepositoryManager, func() error, error) {
	if dsn == "" {
		logger.Warn(ctx, "DATABASE_DSN is empty, using the in-memory store; data will not survive a restart")
		return repomanager.NewInMemoryRepositoryManager(memstore.New()), func() error { return nil }, nil
	}

	db, err := openDB("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	return repomanager.NewPostgresRepositoryManager(db), db.Close, nil
}
