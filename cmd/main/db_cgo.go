//go:build cgo_sqlite

package main

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// openDB opens a database with the cgo driver. The native driver's
// "_pragma=name(value)" parameters are rewritten to go-sqlite3's "_name=value".
func openDB(dataSource string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", cgoDataSource(dataSource))
	if err != nil {
		return nil, err
	}
	return tuneDB(db)
}

func cgoDataSource(dataSource string) string {
	path, query, found := strings.Cut(dataSource, "?")
	if !found {
		return dataSource
	}
	var params []string
	for _, p := range strings.Split(query, "&") {
		if name, ok := strings.CutPrefix(p, "_pragma="); ok {
			if key, value, ok := strings.Cut(strings.TrimSuffix(name, ")"), "("); ok {
				p = "_" + key + "=" + value
			}
		}
		params = append(params, p)
	}
	return path + "?" + strings.Join(params, "&")
}
