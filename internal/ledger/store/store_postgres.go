package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"rollcall/internal/ledger/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/platform/tx"
)

const uniqueViolation = "23505"

const recordColumns = `id, session_id, class_id, participant_id, method, outcome, confidence,
	recorded_at, supersedes, reason, device, client_ip, seq`

// PostgresStore persists the ledger. The partial unique index on
// (session_id, participant_id) WHERE supersedes IS NULL enforces one root
// entry per pair; a unique index on supersedes keeps correction chains linear.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertCheckIn(ctx context.Context, rec *models.Record) (*models.Record, error) {
	stored := rec.Clone()
	stored.Supersedes = nil
	stored.Duplicate = false

	q := tx.Using(ctx, s.db)
	err := q.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, session_id, class_id, participant_id, method, outcome,
			confidence, recorded_at, reason, device, client_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id, participant_id) WHERE supersedes IS NULL DO NOTHING
		RETURNING seq
	`, stored.ID.String(), stored.SessionID.String(), stored.ClassID.String(), stored.ParticipantID.String(),
		stored.Method.String(), stored.Outcome.String(), stored.Confidence, stored.RecordedAt,
		stored.Reason, stored.Device, stored.ClientIP,
	).Scan(&stored.Seq)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("insert check-in: %w", err)
	}

	row := q.QueryRowContext(ctx, `SELECT `+recordColumns+`
		FROM attendance_records
		WHERE session_id = $1 AND participant_id = $2 AND supersedes IS NULL
	`, stored.SessionID.String(), stored.ParticipantID.String())
	existing, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("load existing check-in: %w", err)
	}
	return existing, sentinel.ErrDuplicate
}

// Amend links rec to the pair's latest entry under a row lock. A concurrent
// amendment of the same pair surfaces as sentinel.ErrConflict.
func (s *PostgresStore) Amend(ctx context.Context, rec *models.Record) (*models.Record, error) {
	stored := rec.Clone()
	stored.Duplicate = false
	stored.Supersedes = nil

	err := tx.Run(ctx, s.db, func(ctx context.Context, q tx.Querier) error {
		var prev string
		err := q.QueryRowContext(ctx, `
			SELECT id FROM attendance_records
			WHERE session_id = $1 AND participant_id = $2
			ORDER BY seq DESC LIMIT 1
			FOR UPDATE
		`, stored.SessionID.String(), stored.ParticipantID.String()).Scan(&prev)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("load latest entry: %w", err)
		default:
			id, err := uuid.Parse(prev)
			if err != nil {
				return fmt.Errorf("parse record id: %w", err)
			}
			rid := domain.RecordID(id)
			stored.Supersedes = &rid
		}

		var supersedes any
		if stored.Supersedes != nil {
			supersedes = stored.Supersedes.String()
		}
		err = q.QueryRowContext(ctx, `
			INSERT INTO attendance_records (id, session_id, class_id, participant_id, method, outcome,
				confidence, recorded_at, supersedes, reason, device, client_ip)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING seq
		`, stored.ID.String(), stored.SessionID.String(), stored.ClassID.String(), stored.ParticipantID.String(),
			stored.Method.String(), stored.Outcome.String(), stored.Confidence, stored.RecordedAt,
			supersedes, stored.Reason, stored.Device, stored.ClientIP,
		).Scan(&stored.Seq)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert amendment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// InsertAbsences writes absent roots for every participant without one, in
// a single statement. It returns how many were written.
func (s *PostgresStore) InsertAbsences(ctx context.Context, sessionID domain.SessionID, classID domain.ClassID, participants []domain.ParticipantID, at time.Time, reason string) (int, error) {
	if len(participants) == 0 {
		return 0, nil
	}
	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.String()
	}
	res, err := tx.Using(ctx, s.db).ExecContext(ctx, `
		INSERT INTO attendance_records (id, session_id, class_id, participant_id, method, outcome,
			confidence, recorded_at, reason)
		SELECT gen_random_uuid(), $1, $2, p, $3, $4, 0, $5, $6
		FROM unnest($7::text[]) AS p
		ON CONFLICT (session_id, participant_id) WHERE supersedes IS NULL DO NOTHING
	`, sessionID.String(), classID.String(), domain.MethodSystem.String(), models.OutcomeAbsent.String(),
		at, reason, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("insert absences: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count absences: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) ListBySession(ctx context.Context, id domain.SessionID) ([]*models.Record, error) {
	rows, err := tx.Using(ctx, s.db).QueryContext(ctx, `SELECT `+recordColumns+`
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY seq
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) ListByParticipant(ctx context.Context, pid domain.ParticipantID, from, to time.Time) ([]*models.Record, error) {
	rows, err := tx.Using(ctx, s.db).QueryContext(ctx, `
		SELECT r.id, r.session_id, r.class_id, r.participant_id, r.method, r.outcome, r.confidence,
			r.recorded_at, r.supersedes, r.reason, r.device, r.client_ip, r.seq
		FROM attendance_records r
		JOIN attendance_records root
			ON root.session_id = r.session_id
			AND root.participant_id = r.participant_id
			AND root.supersedes IS NULL
		WHERE r.participant_id = $1
			AND ($2::timestamptz IS NULL OR root.recorded_at >= $2)
			AND ($3::timestamptz IS NULL OR root.recorded_at < $3)
		ORDER BY r.seq
	`, pid.String(), nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("list participant records: %w", err)
	}
	return collect(rows)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		id, sessionID, classID, participantID string
		method, outcome, reason, device, ip   string
		confidence                            sql.NullFloat64
		supersedes                            sql.NullString
		r                                     models.Record
	)
	if err := row.Scan(&id, &sessionID, &classID, &participantID, &method, &outcome, &confidence,
		&r.RecordedAt, &supersedes, &reason, &device, &ip, &r.Seq); err != nil {
		return nil, err
	}
	rid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse record id: %w", err)
	}
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	r.ID = domain.RecordID(rid)
	r.SessionID = domain.SessionID(sid)
	r.ClassID = domain.ClassID(classID)
	r.ParticipantID = domain.ParticipantID(participantID)
	r.Method = domain.CheckInMethod(method)
	r.Outcome = models.Outcome(outcome)
	r.Confidence = confidence.Float64
	r.Reason, r.Device, r.ClientIP = reason, device, ip
	if supersedes.Valid {
		prev, err := uuid.Parse(supersedes.String)
		if err != nil {
			return nil, fmt.Errorf("parse supersedes: %w", err)
		}
		p := domain.RecordID(prev)
		r.Supersedes = &p
	}
	return &r, nil
}

func collect(rows *sql.Rows) ([]*models.Record, error) {
	defer rows.Close()
	out := []*models.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
