package sqlite

import (
	"context"
	"time"

	"github.com/midgardlabs/tokend/internal/tokend/domain"
)

type tokensRepo struct {
	q querier
}

func (r *tokensRepo) GetTokenByValue(ctx context.Context, value string) (domain.Token, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT value, client_id, scope, expires_at, created_at
		FROM tokens
		WHERE value = ?`, value)
	return scanToken(row)
}

func (r *tokensRepo) GetActiveToken(ctx context.Context, clientID, scope string) (domain.Token, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT value, client_id, scope, expires_at, created_at
		FROM tokens
		WHERE client_id = ? AND scope = ?`, clientID, scope)
	return scanToken(row)
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.Token) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO tokens (value, client_id, scope, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.Value, t.ClientID, t.Scope, t.ExpiresAt.UTC(), t.CreatedAt.UTC())
	return err
}

func (r *tokensRepo) DeleteTokensForClientScope(ctx context.Context, clientID, scope string) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM tokens
		WHERE client_id = ? AND scope = ?`, clientID, scope)
	return err
}

func (r *tokensRepo) DeleteTokenByValue(ctx context.Context, value string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM tokens WHERE value = ?`, value)
	return err
}

func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
