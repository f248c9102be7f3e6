package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type PostgresRepository struct {
	conn *pgx.Conn
}

// NewPostgresRepository connects to the database. The schema is expected
// to exist; deployments apply the migrations out of band.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresRepository{conn: conn}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) SaveSessionState(ctx context.Context, record *SessionRecord) error {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
	INSERT INTO sessions (session_id, timestamp) VALUES ($1, $2)
	ON CONFLICT (session_id) DO UPDATE SET timestamp = $2;
	`, record.SessionID, record.Timestamp); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	for slot, fill := range record.SlotFills {
		solvers, err := json.Marshal(record.SlotSolvers[slot])
		if err != nil {
			return fmt.Errorf("failed to marshal solvers for slot %d: %w", slot, err)
		}
		if _, err := tx.Exec(ctx, `
		INSERT INTO session_slots (session_id, slot, fill, solvers) VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, slot) DO UPDATE SET fill = $3, solvers = $4;
		`, record.SessionID, slot, fill, string(solvers)); err != nil {
			return fmt.Errorf("failed to upsert slot %d: %w", slot, err)
		}
	}

	for side, score := range record.Scores {
		if _, err := tx.Exec(ctx, `
		INSERT INTO session_scores (session_id, side, score) VALUES ($1, $2, $3)
		ON CONFLICT (session_id, side) DO UPDATE SET score = $3;
		`, record.SessionID, side, score); err != nil {
			return fmt.Errorf("failed to upsert score for side %s: %w", side, err)
		}
	}

	for name, completed := range record.Roster {
		if _, err := tx.Exec(ctx, `
		INSERT INTO session_roster (session_id, name, completed) VALUES ($1, $2, $3)
		ON CONFLICT (session_id, name) DO UPDATE SET completed = $3;
		`, record.SessionID, name, completed); err != nil {
			return fmt.Errorf("failed to upsert roster entry %s: %w", name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *PostgresRepository) LoadSessionState(ctx context.Context, sessionID string) (*SessionRecord, error) {
	record := NewSessionRecord(sessionID)

	if err := r.conn.QueryRow(ctx, `
	SELECT timestamp FROM sessions WHERE session_id = $1;
	`, sessionID).Scan(&record.Timestamp); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	slotRows, err := r.conn.Query(ctx, `
	SELECT slot, fill, solvers FROM session_slots WHERE session_id = $1;
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer slotRows.Close()
	for slotRows.Next() {
		var slot, fill int
		var solversJSON string
		if err := slotRows.Scan(&slot, &fill, &solversJSON); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		var solvers []string
		if err := json.Unmarshal([]byte(solversJSON), &solvers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal solvers for slot %d: %w", slot, err)
		}
		record.SlotFills[slot] = fill
		record.SlotSolvers[slot] = solvers
	}

	scoreRows, err := r.conn.Query(ctx, `
	SELECT side, score FROM session_scores WHERE session_id = $1;
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer scoreRows.Close()
	for scoreRows.Next() {
		var side string
		var score int
		if err := scoreRows.Scan(&side, &score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		record.Scores[side] = score
	}

	rosterRows, err := r.conn.Query(ctx, `
	SELECT name, completed FROM session_roster WHERE session_id = $1;
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roster: %w", err)
	}
	defer rosterRows.Close()
	for rosterRows.Next() {
		var name string
		var completed int
		if err := rosterRows.Scan(&name, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan roster entry: %w", err)
		}
		record.Roster[name] = completed
	}

	return record, nil
}

func (r *PostgresRepository) IncrementRanking(ctx context.Context, name string, goals int) error {
	if _, err := r.conn.Exec(ctx, `
	INSERT INTO rankings (name, goals) VALUES ($1, $2)
	ON CONFLICT (name) DO UPDATE SET goals = rankings.goals + $2;
	`, name, goals); err != nil {
		return fmt.Errorf("failed to increment ranking for %s: %w", name, err)
	}
	return nil
}

func (r *PostgresRepository) TopRankings(ctx context.Context, limit int) ([]RankingEntry, error) {
	rows, err := r.conn.Query(ctx, `
	SELECT name, goals FROM rankings ORDER BY goals DESC, name ASC LIMIT $1;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rankings: %w", err)
	}
	defer rows.Close()

	var entries []RankingEntry
	for rows.Next() {
		var entry RankingEntry
		if err := rows.Scan(&entry.Name, &entry.Goals); err != nil {
			return nil, fmt.Errorf("failed to scan ranking entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
