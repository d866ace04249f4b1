package engine

import (
	"context"
	"database/sql"
	"path/filepath"

	"github.com/kvsdb/kvs/internal/kvserr"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// sqliteDBFileName is the fixed on-disk database file within the
// engine's data directory, the SQLite analogue of x.log.
const sqliteDBFileName = "x.sqlite3"

// SQLiteEngine is an alternate storage adapter: where KvsEngine is a
// hand-rolled log-structured store, SQLiteEngine delegates persistence,
// locking, and durability entirely to an embedded SQLite database. It has
// no in-memory index and no compaction step. It uses a single database
// connection, so reads and writes on it run one at a time rather than in
// the single-writer/many-reader arrangement of the log-structured engine.
type SQLiteEngine struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (creating if absent) a SQLite-backed engine rooted at
// dir/x.sqlite3.
func OpenSQLite(dir string, logger *zap.Logger) (SQLiteEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := filepath.Join(dir, sqliteDBFileName)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return SQLiteEngine{}, kvserr.Wrap(kvserr.Io, "opening sqlite engine", err)
	}
	// A single connection serializes every read and write at the
	// database/sql layer, so no two operations on this engine run at once
	// and no hand-rolled lock is needed.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return SQLiteEngine{}, kvserr.Wrap(kvserr.Io, "pinging sqlite engine", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return SQLiteEngine{}, kvserr.Wrap(kvserr.Io, "creating sqlite schema", err)
	}
	logger.Info("sqlite engine opened", zap.String("path", path))
	return SQLiteEngine{db: db, logger: logger}, nil
}

func (e SQLiteEngine) Name() string { return NameSQLite }

func (e SQLiteEngine) Set(ctx context.Context, key, value string) error {
	_, err := e.db.ExecContext(ctx, `INSERT INTO kv(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return kvserr.Wrap(kvserr.Io, "sqlite set", err)
	}
	return nil
}

func (e SQLiteEngine) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := e.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, kvserr.Wrap(kvserr.Io, "sqlite get", err)
	}
	return value, true, nil
}

func (e SQLiteEngine) Remove(ctx context.Context, key string) error {
	res, err := e.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return kvserr.Wrap(kvserr.Io, "sqlite remove", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return kvserr.Wrap(kvserr.Io, "sqlite remove rows affected", err)
	}
	if n == 0 {
		return kvserr.ErrKeyNotFound
	}
	return nil
}

func (e SQLiteEngine) Close() error {
	if err := e.db.Close(); err != nil {
		return kvserr.Wrap(kvserr.Io, "closing sqlite engine", err)
	}
	return nil
}
