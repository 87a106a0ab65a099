// Package settings reads per-user profile settings: the user's name, the
// persona name they chose for the assistant, and their gender. Written by the
// signup flow, read-only here.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Settings is a user's profile configuration.
type Settings struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	AgentName string `json:"agent_name"`
	Gender    string `json:"gender"`
	Voice     string `json:"voice"`
}

type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*Settings, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

// GetByUserID returns the user's settings, or nil when none exist.
func (r *postgresRepository) GetByUserID(ctx context.Context, userID string) (*Settings, error) {
	query := `SELECT user_id, name, agent_name, gender, voice FROM settings WHERE user_id = $1`

	s := &Settings{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.UserID, &s.Name, &s.AgentName, &s.Gender, &s.Voice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	return s, nil
}
