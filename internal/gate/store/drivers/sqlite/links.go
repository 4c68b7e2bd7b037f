package sqlite

import (
	"context"

	"github.com/hatchway/gatehouse/internal/gate/domain"
)

const linkColumns = `user_id, provider, external_id, access_token, refresh_token,
	created_at, updated_at`

type linksRepo struct {
	q querier
}

func (r *linksRepo) ListLinksByUser(ctx context.Context, userID string) ([]domain.Link, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM provider_links WHERE user_id = ? ORDER BY provider`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		l, err := scanLink(rows.Scan)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *linksRepo) GetLink(ctx context.Context, userID string, provider domain.Provider) (domain.Link, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM provider_links WHERE user_id = ? AND provider = ?`,
		userID, string(provider))

	l, err := scanLink(row.Scan)
	if err != nil {
		return domain.Link{}, mapNotFound(err)
	}
	return l, nil
}

func (r *linksRepo) GetLinkByExternalID(ctx context.Context, provider domain.Provider, externalID string) (domain.Link, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM provider_links WHERE provider = ? AND external_id = ?`,
		string(provider), externalID)

	l, err := scanLink(row.Scan)
	if err != nil {
		return domain.Link{}, mapNotFound(err)
	}
	return l, nil
}

func (r *linksRepo) UpsertLink(ctx context.Context, l domain.Link) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO provider_links (user_id, provider, external_id, access_token, refresh_token)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			external_id = excluded.external_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = CURRENT_TIMESTAMP`,
		l.UserID, string(l.Provider), l.ExternalID, l.AccessToken, l.RefreshToken)
	return mapConflict(err)
}

func (r *linksRepo) DeleteLink(ctx context.Context, userID string, provider domain.Provider) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM provider_links WHERE user_id = ? AND provider = ?`,
		userID, string(provider))
	return err
}
