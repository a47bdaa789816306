package strategy

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/SolarWolf-Code/quantedge/internal/database"
)

// ErrNotFound is returned when a strategy id has no row.
var ErrNotFound = errors.New("strategy not found")

// Record is a persisted strategy. Rules stays raw JSON; it is decoded only
// when a backtest runs it.
type Record struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Rules     json.RawMessage `json:"rules"`
	UserID    string          `json:"user_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Repository persists strategies in the strategies table.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a strategy repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "strategy_repository").Logger(),
	}
}

// Save upserts a strategy by its (name, user_id) key and returns its id.
// Re-saving replaces the rules and bumps updated_at.
func (r *Repository) Save(name, userID string, rules json.RawMessage) (int64, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO strategies (name, rules, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (name, user_id) DO UPDATE
		SET rules = EXCLUDED.rules, updated_at = now()
		RETURNING id
	`, name, string(rules), userID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save strategy %q: %w", name, err)
	}

	r.log.Info().Str("name", name).Int64("strategy_id", id).Msg("Strategy saved")
	return id, nil
}

// Get returns one strategy by id.
func (r *Repository) Get(id int64) (*Record, error) {
	var rec Record
	var rules string
	err := r.db.QueryRow(`
		SELECT id, name, rules, user_id, created_at, updated_at
		FROM strategies
		WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Name, &rules, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load strategy %d: %w", id, err)
	}

	rec.Rules = json.RawMessage(rules)
	return &rec, nil
}

// List returns all strategies, most recently updated first.
func (r *Repository) List() ([]Record, error) {
	rows, err := r.db.Query(`
		SELECT id, name, rules, user_id, created_at, updated_at
		FROM strategies
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var rules string
		if err := rows.Scan(&rec.ID, &rec.Name, &rules, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		rec.Rules = json.RawMessage(rules)
		records = append(records, rec)
	}
	return records, rows.Err()
}
