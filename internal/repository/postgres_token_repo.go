package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brunosj/thfradio/internal/soundcloud"
)

// PostgresTokenRepo はPostgreSQLを使用したOAuthトークンリポジトリ。
// プロセス再起動後のコールドスタートで余分なトークンリクエストを
// 発生させないための永続化層で、soundcloud.TokenStoreを実装する。
type PostgresTokenRepo struct {
	db       *sql.DB
	provider string
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
// providerはトークンの取得元を識別するキー（例: "soundcloud"）。
func NewPostgresTokenRepo(db *sql.DB, provider string) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db, provider: provider}
}

// LoadToken は保存済みトークンを返す。見つからない場合はnilを返す。
func (r *PostgresTokenRepo) LoadToken(ctx context.Context) (*soundcloud.OAuthToken, error) {
	token := &soundcloud.OAuthToken{}

	err := r.db.QueryRowContext(ctx,
		`SELECT token, expires_at FROM oauth_tokens WHERE provider = $1`,
		r.provider,
	).Scan(&token.Value, &token.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("トークンの取得に失敗しました: %w", err)
	}

	return token, nil
}

// SaveToken はトークンをUPSERTする。プロバイダーごとに最新の1件だけを保持する。
func (r *PostgresTokenRepo) SaveToken(ctx context.Context, token *soundcloud.OAuthToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_tokens (provider, token, expires_at, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (provider) DO UPDATE SET
		    token = EXCLUDED.token,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = now()`,
		r.provider, token.Value, token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("トークンの保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ soundcloud.TokenStore = (*PostgresTokenRepo)(nil)
