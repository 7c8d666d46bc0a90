package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cicerone/pkg/db"
	"cicerone/pkg/model"
)

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Sessions ---

func (s *SQLiteStore) SaveSession(ctx context.Context, snap model.SessionSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, tour_id, status, mode, expected_index, current_waypoint_id, points_triggered, points_skipped, waypoint_count, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			mode = excluded.mode,
			expected_index = excluded.expected_index,
			current_waypoint_id = excluded.current_waypoint_id,
			points_triggered = excluded.points_triggered,
			points_skipped = excluded.points_skipped,
			updated_at = excluded.updated_at`,
		snap.SessionID, snap.TourID, string(snap.Status), string(snap.Mode),
		snap.ExpectedIndex, snap.CurrentWaypointID,
		snap.PointsTriggered, snap.PointsSkipped, snap.WaypointCount,
		snap.StartedAt.UTC(), time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*model.SessionSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, tour_id, status, mode, expected_index, current_waypoint_id, points_triggered, points_skipped, waypoint_count, started_at
		 FROM sessions WHERE session_id = ?`, sessionID)
	snap, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return snap, nil
}

func (s *SQLiteStore) LatestActiveSession(ctx context.Context) (*model.SessionSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, tour_id, status, mode, expected_index, current_waypoint_id, points_triggered, points_skipped, waypoint_count, started_at
		 FROM sessions
		 WHERE status NOT IN (?, ?)
		 ORDER BY updated_at DESC LIMIT 1`,
		string(model.StatusCompleted), string(model.StatusAbandoned))
	snap, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return snap, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]model.SessionSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, tour_id, status, mode, expected_index, current_waypoint_id, points_triggered, points_skipped, waypoint_count, started_at
		 FROM sessions ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SessionSnapshot
	for rows.Next() {
		snap, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.SessionSnapshot, error) {
	var snap model.SessionSnapshot
	var status, mode string
	var startedAt sql.NullTime

	err := row.Scan(
		&snap.SessionID, &snap.TourID, &status, &mode,
		&snap.ExpectedIndex, &snap.CurrentWaypointID,
		&snap.PointsTriggered, &snap.PointsSkipped, &snap.WaypointCount,
		&startedAt,
	)
	if err != nil {
		return nil, err
	}
	snap.Status = model.SessionStatus(status)
	snap.Mode = model.TriggerMode(mode)
	if startedAt.Valid {
		snap.StartedAt = startedAt.Time
	}
	return &snap, nil
}

// --- Trip events ---

func (s *SQLiteStore) SaveEvent(ctx context.Context, ev model.TripEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trip_events (type, session_id, tour_id, waypoint_id, mode, elapsed_ms, timestamp, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Type), ev.SessionID, ev.TourID, ev.WaypointID, string(ev.Mode),
		ev.Elapsed.Milliseconds(), ev.Timestamp.UTC(), ev.Detail,
	)
	return err
}

func (s *SQLiteStore) GetEvents(ctx context.Context, sessionID string) ([]model.TripEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, session_id, tour_id, waypoint_id, mode, elapsed_ms, timestamp, detail
		 FROM trip_events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TripEvent
	for rows.Next() {
		var ev model.TripEvent
		var evType, mode string
		var elapsedMS int64
		var ts sql.NullTime
		if err := rows.Scan(&evType, &ev.SessionID, &ev.TourID, &ev.WaypointID, &mode, &elapsedMS, &ts, &ev.Detail); err != nil {
			return nil, err
		}
		ev.Type = model.EventType(evType)
		ev.Mode = model.TriggerMode(mode)
		ev.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if ts.Valid {
			ev.Timestamp = ts.Time
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// --- Tours ---

func (s *SQLiteStore) SaveTour(ctx context.Context, t *model.Tour) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid tour: %w", err)
	}
	definition, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tours (id, title, language, definition, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			language = excluded.language,
			definition = excluded.definition,
			updated_at = excluded.updated_at`,
		t.ID, t.Title, t.Language, string(definition), time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) GetTour(ctx context.Context, id string) (*model.Tour, error) {
	row := s.db.QueryRowContext(ctx, `SELECT definition FROM tours WHERE id = ?`, id)

	var definition string
	if err := row.Scan(&definition); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var t model.Tour
	if err := json.Unmarshal([]byte(definition), &t); err != nil {
		return nil, fmt.Errorf("corrupt tour definition %q: %w", id, err)
	}
	return &t, nil
}

func (s *SQLiteStore) ListTours(ctx context.Context) ([]model.Tour, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT definition FROM tours ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Tour
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, err
		}
		var t model.Tour
		if err := json.Unmarshal([]byte(definition), &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM persistent_state WHERE key = ?`, key)
	var val string
	if err := row.Scan(&val); err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO persistent_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, val,
	)
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM persistent_state WHERE key = ?`, key)
	return err
}
