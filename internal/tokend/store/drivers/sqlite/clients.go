package sqlite

import (
	"context"

	"github.com/midgardlabs/tokend/internal/tokend/domain"
)

type clientsRepo struct {
	q querier
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, secret_hash, scopes, created_at, updated_at
		FROM clients
		WHERE id = ?`, id)
	return scanClient(row)
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, secret_hash, scopes, created_at, updated_at
		FROM clients
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	now := nowUTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO clients (id, secret_hash, scopes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.SecretHash, domain.EncodeScopes(c.Scopes), now, now)
	return err
}

func (r *clientsRepo) UpsertClient(ctx context.Context, c domain.Client) error {
	now := nowUTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO clients (id, secret_hash, scopes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			secret_hash = excluded.secret_hash,
			scopes = excluded.scopes,
			updated_at = excluded.updated_at`,
		c.ID, c.SecretHash, domain.EncodeScopes(c.Scopes), now, now)
	return err
}

func (r *clientsRepo) DeleteClient(ctx context.Context, clientID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, clientID)
	return err
}

func (r *clientsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
