package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open はスナップショット永続化用のPostgreSQL接続を開く。
// このDBはキャッシュの最終手段層とトークン保存にしか使われないため、
// 接続プールは小さく保つ。
// sql.Openは接続を試行しないため、到達確認にはdb.Ping()を使用すること。
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
