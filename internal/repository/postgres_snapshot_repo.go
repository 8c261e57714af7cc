package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresSnapshotRepo はPostgreSQLを使用したスナップショットリポジトリ。
type PostgresSnapshotRepo struct {
	db *sql.DB
}

// NewPostgresSnapshotRepo はPostgresSnapshotRepoを生成する。
func NewPostgresSnapshotRepo(db *sql.DB) *PostgresSnapshotRepo {
	return &PostgresSnapshotRepo{db: db}
}

// Save は指定種別のスナップショットをUPSERTする。
// 種別ごとに最新の1件だけを保持する。
func (r *PostgresSnapshotRepo) Save(ctx context.Context, kind string, payload []byte, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, kind, payload, fetched_at, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (kind) DO UPDATE SET
		    payload = EXCLUDED.payload,
		    fetched_at = EXCLUDED.fetched_at,
		    updated_at = now()`,
		uuid.NewString(), kind, payload, fetchedAt,
	)
	if err != nil {
		return fmt.Errorf("スナップショットの保存に失敗しました: %w", err)
	}
	return nil
}

// Load は指定種別の最新スナップショットを返す。見つからない場合はokがfalseを返す。
func (r *PostgresSnapshotRepo) Load(ctx context.Context, kind string) ([]byte, time.Time, bool, error) {
	var payload []byte
	var fetchedAt time.Time

	err := r.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM snapshots WHERE kind = $1`,
		kind,
	).Scan(&payload, &fetchedAt)

	if err == sql.ErrNoRows {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("スナップショットの取得に失敗しました: %w", err)
	}

	return payload, fetchedAt, true, nil
}

// compile-time interface check
var _ SnapshotRepository = (*PostgresSnapshotRepo)(nil)
