package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/asgiship/asgiship/pkg/utils"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// BuildRecord is one row of build provenance.
type BuildRecord struct {
	ID         string
	Image      string // image tag that was built
	BaseRef    string // pinned base reference
	BaseDigest string // base manifest digest
	DepsKey    string // dependency layer cache key
	AppKey     string // application layer cache key
	Status     string
	Error      *string
	Duration   time.Duration
	CreatedAt  time.Time
}

// InsertBuild persists a finished build attempt, successful or not.
func InsertBuild(ctx context.Context, db *sql.DB, rec *BuildRecord) error {
	id, err := utils.NewUUID7()
	if err != nil {
		return fmt.Errorf("generate build record id: %w", err)
	}
	now := time.Now().Unix()

	query := `
		INSERT INTO builds (id, image, base_ref, base_digest, deps_key, app_key, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		id, rec.Image, rec.BaseRef, rec.BaseDigest, rec.DepsKey, rec.AppKey,
		rec.Status, rec.Error, rec.Duration.Milliseconds(), now)
	if err != nil {
		return fmt.Errorf("insert build record: %w", err)
	}

	rec.ID = id
	rec.CreatedAt = time.Unix(now, 0)
	return nil
}

// LatestBuild returns the most recent record for an image tag, or nil
// when the image has never been built.
func LatestBuild(ctx context.Context, db *sql.DB, image string) (*BuildRecord, error) {
	query := `
		SELECT id, image, base_ref, base_digest, deps_key, app_key, status, error, duration_ms, created_at
		FROM builds
		WHERE image = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var rec BuildRecord
	var durationMs int64
	var createdAt int64
	err := db.QueryRowContext(ctx, query, image).Scan(
		&rec.ID, &rec.Image, &rec.BaseRef, &rec.BaseDigest, &rec.DepsKey, &rec.AppKey,
		&rec.Status, &rec.Error, &durationMs, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest build: %w", err)
	}

	rec.Duration = time.Duration(durationMs) * time.Millisecond
	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}
