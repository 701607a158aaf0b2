package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"rollcall/internal/enrollment/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/platform/tx"
)

// PostgresStore persists profiles with descriptors as float8[] columns.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Profile) error {
	return tx.Run(ctx, s.db, func(ctx context.Context, q tx.Querier) error {
		res, err := q.ExecContext(ctx, `
			INSERT INTO enrollment_profiles (participant_id, version, status, dimension, created_at, finalized_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (participant_id) DO NOTHING
		`, p.ParticipantID.String(), p.Version, string(p.Status), p.Dimension(), p.CreatedAt, p.FinalizedAt)
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sentinel.ErrConflict
		}
		return insertSamples(ctx, q, p)
	})
}

func (s *PostgresStore) Find(ctx context.Context, id domain.ParticipantID) (*models.Profile, error) {
	p, err := loadProfile(ctx, tx.Using(ctx, s.db), id, false)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Execute locks the profile row FOR UPDATE across validate and mutate, then
// rewrites it.
func (s *PostgresStore) Execute(ctx context.Context, id domain.ParticipantID, validate func(*models.Profile) error, mutate func(*models.Profile)) (*models.Profile, error) {
	var (
		loaded  *models.Profile
		invalid error
	)
	err := tx.Run(ctx, s.db, func(ctx context.Context, q tx.Querier) error {
		p, err := loadProfile(ctx, q, id, true)
		if err != nil {
			return err
		}
		if invalid = validate(p); invalid != nil {
			loaded = p
			return invalid
		}
		mutate(p)

		_, err = q.ExecContext(ctx, `
			UPDATE enrollment_profiles
			SET version = $2, status = $3, dimension = $4, created_at = $5, finalized_at = $6
			WHERE participant_id = $1
		`, p.ParticipantID.String(), p.Version, string(p.Status), p.Dimension(), p.CreatedAt, p.FinalizedAt)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM enrollment_samples WHERE participant_id = $1`, p.ParticipantID.String()); err != nil {
			return fmt.Errorf("clear samples: %w", err)
		}
		if err := insertSamples(ctx, q, p); err != nil {
			return err
		}
		loaded = p
		return nil
	})
	if invalid != nil {
		return loaded, invalid
	}
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

// ListUsable loads finalized profiles, optionally restricted to ids.
func (s *PostgresStore) ListUsable(ctx context.Context, ids []domain.ParticipantID) ([]*models.Profile, error) {
	query := `
		SELECT p.participant_id, p.version, p.status, p.created_at, p.finalized_at,
		       sm.pose, sm.descriptor, sm.captured_at
		FROM enrollment_profiles p
		JOIN enrollment_samples sm ON sm.participant_id = p.participant_id
		WHERE p.status = $1`
	args := []any{string(models.StatusUsable)}
	if ids != nil {
		raw := make([]string, len(ids))
		for i, id := range ids {
			raw[i] = id.String()
		}
		query += ` AND p.participant_id = ANY($2)`
		args = append(args, pq.Array(raw))
	}
	query += ` ORDER BY p.participant_id, sm.captured_at`

	rows, err := tx.Using(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list usable profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.Profile
	var cur *models.Profile
	for rows.Next() {
		var (
			pid, status, pose string
			version           int
			createdAt, captAt time.Time
			finalizedAt       sql.NullTime
			descriptor        pq.Float64Array
		)
		if err := rows.Scan(&pid, &version, &status, &createdAt, &finalizedAt, &pose, &descriptor, &captAt); err != nil {
			return nil, fmt.Errorf("scan usable profile: %w", err)
		}
		if cur == nil || cur.ParticipantID.String() != pid {
			cur = &models.Profile{
				ParticipantID: domain.ParticipantID(pid),
				Version:       version,
				Status:        models.Status(status),
				CreatedAt:     createdAt,
			}
			if finalizedAt.Valid {
				t := finalizedAt.Time
				cur.FinalizedAt = &t
			}
			out = append(out, cur)
		}
		cur.Samples = append(cur.Samples, models.Sample{
			Pose:       models.Pose(pose),
			Descriptor: models.Descriptor(descriptor),
			CapturedAt: captAt,
		})
	}
	return out, rows.Err()
}

func loadProfile(ctx context.Context, q tx.Querier, id domain.ParticipantID, forUpdate bool) (*models.Profile, error) {
	query := `
		SELECT version, status, created_at, finalized_at
		FROM enrollment_profiles WHERE participant_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	p := &models.Profile{ParticipantID: id}
	var (
		status      string
		finalizedAt sql.NullTime
	)
	err := q.QueryRowContext(ctx, query, id.String()).Scan(&p.Version, &status, &p.CreatedAt, &finalizedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	p.Status = models.Status(status)
	if finalizedAt.Valid {
		t := finalizedAt.Time
		p.FinalizedAt = &t
	}

	rows, err := q.QueryContext(ctx, `
		SELECT pose, descriptor, captured_at
		FROM enrollment_samples WHERE participant_id = $1
		ORDER BY captured_at
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pose       string
			descriptor pq.Float64Array
			capturedAt time.Time
		)
		if err := rows.Scan(&pose, &descriptor, &capturedAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		p.Samples = append(p.Samples, models.Sample{
			Pose:       models.Pose(pose),
			Descriptor: models.Descriptor(descriptor),
			CapturedAt: capturedAt,
		})
	}
	return p, rows.Err()
}

func insertSamples(ctx context.Context, q tx.Querier, p *models.Profile) error {
	for _, sm := range p.Samples {
		_, err := q.ExecContext(ctx, `
			INSERT INTO enrollment_samples (participant_id, pose, descriptor, captured_at)
			VALUES ($1, $2, $3, $4)
		`, p.ParticipantID.String(), string(sm.Pose), pq.Array([]float64(sm.Descriptor)), sm.CapturedAt)
		if err != nil {
			return fmt.Errorf("insert sample %s: %w", sm.Pose, err)
		}
	}
	return nil
}
