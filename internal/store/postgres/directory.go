package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/talentbridge/messaging/internal/model"
)

const profileColumns = `id, full_name, COALESCE(avatar_url, '') AS avatar_url, is_private, accept_dm`

// Directory reads profiles and applications.
type Directory struct {
	db *sqlx.DB
}

// NewDirectory creates a directory.
func NewDirectory(db *sqlx.DB) *Directory {
	return &Directory{db: db}
}

func (r *Directory) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, userID); err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (r *Directory) GetProfiles(ctx context.Context, userIDs []string) (map[string]model.Profile, error) {
	out := make(map[string]model.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []model.Profile
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(userIDs)); err != nil {
		return nil, classify(err)
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func (r *Directory) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	var a model.Application
	query := `SELECT id, status, student_id, employer_id FROM applications WHERE id = $1`
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		return nil, classify(err)
	}
	return &a, nil
}
