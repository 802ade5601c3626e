package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// tuneDB verifies the connection. SQLite serializes writers, so one open
// connection avoids "database is locked" errors under concurrent requests.
func tuneDB(db *sql.DB) (*sql.DB, error) {
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// ensureDBDir creates the directory of a file data source.
func ensureDBDir(dataSource string) error {
	path, _, _ := strings.Cut(strings.TrimPrefix(dataSource, "file:"), "?")
	if path == "" || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0755)
}
