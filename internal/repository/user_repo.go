package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattkerbyy/Bubbly-sub001/internal/models"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository reads the profile replica maintained by the identity
// service. This backend never writes to it.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetSummaryByID(ctx context.Context, id string) (*models.UserSummary, error) {
	query := `
		SELECT id, display_name, avatar_url, is_verified
		FROM users
		WHERE id = $1
	`

	var summary models.UserSummary
	err := r.db.QueryRow(ctx, query, id).Scan(
		&summary.ID,
		&summary.DisplayName,
		&summary.AvatarURL,
		&summary.IsVerified,
	)
	if err != nil {
		return nil, err
	}

	return &summary, nil
}
