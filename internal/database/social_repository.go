package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ph4tZ4/social-main/internal/domain"
)

// SocialRepo implements domain.PostDirectory and domain.FollowerDirectory
// backed by PostgreSQL.
type SocialRepo struct {
	pool *pgxpool.Pool
}

// NewSocialRepo creates a SocialRepo from the shared connection pool.
func NewSocialRepo(pool *pgxpool.Pool) *SocialRepo {
	return &SocialRepo{pool: pool}
}

// FindPostAuthor resolves the author of a post. A missing post maps to
// ErrLookupFailed.
func (r *SocialRepo) FindPostAuthor(ctx context.Context, postID string) (string, error) {
	var authorID string
	err := r.pool.QueryRow(ctx, `SELECT author_id FROM posts WHERE id = $1`, postID).Scan(&authorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("post %s not found: %w", postID, domain.ErrLookupFailed)
	}
	if err != nil {
		return "", fmt.Errorf("post author query failed: %w", err)
	}
	return authorID, nil
}

// ListFollowers returns the ids of users following the given user.
func (r *SocialRepo) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT follower_id FROM follows WHERE followed_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("follower query failed: %w", err)
	}
	defer rows.Close()

	var followers []string
	for rows.Next() {
		var followerID string
		if err := rows.Scan(&followerID); err != nil {
			return nil, fmt.Errorf("follower scan failed: %w", err)
		}
		followers = append(followers, followerID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("follower iteration failed: %w", err)
	}
	return followers, nil
}
