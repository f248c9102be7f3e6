package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database at path and applies every
// migration in the migrations directory in name order.
func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	dir, err := os.ReadDir(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %w", migrationPath, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveSessionState(ctx context.Context, record *SessionRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
	INSERT OR REPLACE INTO sessions (session_id, timestamp) VALUES (?, ?);
	`, record.SessionID, record.Timestamp); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	for slot, fill := range record.SlotFills {
		solvers, err := json.Marshal(record.SlotSolvers[slot])
		if err != nil {
			return fmt.Errorf("failed to marshal solvers for slot %d: %w", slot, err)
		}
		if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO session_slots (session_id, slot, fill, solvers)
		VALUES (?, ?, ?, ?);
		`, record.SessionID, slot, fill, string(solvers)); err != nil {
			return fmt.Errorf("failed to upsert slot %d: %w", slot, err)
		}
	}

	for side, score := range record.Scores {
		if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO session_scores (session_id, side, score)
		VALUES (?, ?, ?);
		`, record.SessionID, side, score); err != nil {
			return fmt.Errorf("failed to upsert score for side %s: %w", side, err)
		}
	}

	for name, completed := range record.Roster {
		if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO session_roster (session_id, name, completed)
		VALUES (?, ?, ?);
		`, record.SessionID, name, completed); err != nil {
			return fmt.Errorf("failed to upsert roster entry %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) LoadSessionState(ctx context.Context, sessionID string) (*SessionRecord, error) {
	record := NewSessionRecord(sessionID)

	if err := r.db.QueryRowContext(ctx, `
	SELECT timestamp FROM sessions WHERE session_id = ?;
	`, sessionID).Scan(&record.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	slotRows, err := r.db.QueryContext(ctx, `
	SELECT slot, fill, solvers FROM session_slots WHERE session_id = ?;
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

	scoreRows, err := r.db.QueryContext(ctx, `
	SELECT side, score FROM session_scores WHERE session_id = ?;
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

	rosterRows, err := r.db.QueryContext(ctx, `
	SELECT name, completed FROM session_roster WHERE session_id = ?;
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

func (r *SQLiteRepository) IncrementRanking(ctx context.Context, name string, goals int) error {
	if _, err := r.db.ExecContext(ctx, `
	INSERT INTO rankings (name, goals) VALUES (?, ?)
	ON CONFLICT (name) DO UPDATE SET goals = goals + excluded.goals;
	`, name, goals); err != nil {
		return fmt.Errorf("failed to increment ranking for %s: %w", name, err)
	}
	return nil
}

func (r *SQLiteRepository) TopRankings(ctx context.Context, limit int) ([]RankingEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT name, goals FROM rankings ORDER BY goals DESC, name ASC LIMIT ?;
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
