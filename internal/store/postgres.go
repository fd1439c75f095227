package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/matchday-labs/goalscan/internal/db"
	"github.com/matchday-labs/goalscan/internal/model"
)

// PostgresStore implements Store using pgxpool. It also carries the matches
// table used for bulk historical imports.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the store operations that run every scan cycle.
var preparedStatements = map[string]string{
	"exists_prediction": `SELECT 1 FROM predictions WHERE fixture_id = $1`,
	"record_outcome":    `UPDATE predictions SET home_goals = $1, away_goals = $2, over25_actual = $3, btts_actual = $4, outcome_at = $5, status = $6 WHERE fixture_id = $7`,
	"start_scan":        `INSERT INTO scan_log (id, status, started_at) VALUES ($1, $2, $3)`,
	"complete_scan":     `UPDATE scan_log SET status = $1, completed_at = $2, fixtures_seen = $3, predictions_made = $4, errors = $5 WHERE id = $6`,
	"fail_scan":         `UPDATE scan_log SET status = $1, completed_at = $2, error = $3 WHERE id = $4`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by subsystems
// that need direct query access (e.g., the historical import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS predictions (
	fixture_id        BIGINT PRIMARY KEY,
	predicted_at      TIMESTAMPTZ NOT NULL,
	home_team         TEXT NOT NULL,
	away_team         TEXT NOT NULL,
	league            TEXT NOT NULL,
	kickoff           TIMESTAMPTZ NOT NULL,
	over25_prob       DOUBLE PRECISION NOT NULL,
	over25_confidence TEXT NOT NULL,
	btts_prob         DOUBLE PRECISION NOT NULL,
	expected_goals    DOUBLE PRECISION NOT NULL,
	home_form         DOUBLE PRECISION NOT NULL,
	away_form         DOUBLE PRECISION NOT NULL,
	status            TEXT NOT NULL DEFAULT 'PENDING',
	home_goals        INTEGER,
	away_goals        INTEGER,
	over25_actual     BOOLEAN,
	btts_actual       BOOLEAN,
	outcome_at        TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS scan_log (
	id               TEXT PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'running',
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at     TIMESTAMPTZ,
	fixtures_seen    INTEGER NOT NULL DEFAULT 0,
	predictions_made INTEGER NOT NULL DEFAULT 0,
	errors           INTEGER NOT NULL DEFAULT 0,
	error            TEXT
);

CREATE TABLE IF NOT EXISTS matches (
	league     TEXT NOT NULL,
	season     TEXT NOT NULL,
	match_date DATE NOT NULL,
	home_team  TEXT NOT NULL,
	away_team  TEXT NOT NULL,
	home_goals INTEGER NOT NULL,
	away_goals INTEGER NOT NULL,
	PRIMARY KEY (league, season, match_date, home_team, away_team)
);

CREATE INDEX IF NOT EXISTS idx_predictions_status ON predictions(status);
CREATE INDEX IF NOT EXISTS idx_predictions_league ON predictions(league);
CREATE INDEX IF NOT EXISTS idx_predictions_kickoff ON predictions(kickoff);
CREATE INDEX IF NOT EXISTS idx_predictions_predicted_at ON predictions(predicted_at);
CREATE INDEX IF NOT EXISTS idx_scan_log_started_at ON scan_log(started_at);
CREATE INDEX IF NOT EXISTS idx_matches_home_team ON matches(home_team);
CREATE INDEX IF NOT EXISTS idx_matches_away_team ON matches(away_team);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, fixtureID int64) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM predictions WHERE fixture_id = $1`, fixtureID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, eris.Wrapf(err, "postgres: exists %d", fixtureID)
	}
	return true, nil
}

// InsertPrediction upserts by fixture id. A re-insert refreshes the
// prediction columns but leaves status and any recorded outcome alone.
func (s *PostgresStore) InsertPrediction(ctx context.Context, p model.Prediction) error {
	if p.Status == "" {
		p.Status = model.PredictionPending
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO predictions
		 (fixture_id, predicted_at, home_team, away_team, league, kickoff,
		  over25_prob, over25_confidence, btts_prob, expected_goals, home_form, away_form, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (fixture_id) DO UPDATE SET
		  predicted_at = $2, home_team = $3, away_team = $4, league = $5, kickoff = $6,
		  over25_prob = $7, over25_confidence = $8, btts_prob = $9, expected_goals = $10,
		  home_form = $11, away_form = $12`,
		p.FixtureID, p.PredictedAt.UTC(), p.HomeTeam, p.AwayTeam, p.League, p.Kickoff.UTC(),
		p.Over25Prob, string(p.Over25Confidence), p.BTTSProb, p.ExpectedGoals,
		p.HomeForm, p.AwayForm, string(p.Status),
	)
	return eris.Wrapf(err, "postgres: insert prediction %d", p.FixtureID)
}

func (s *PostgresStore) GetPrediction(ctx context.Context, fixtureID int64) (*model.Prediction, error) {
	var p model.Prediction
	var homeGoals, awayGoals *int
	var over25Actual, bttsActual *bool
	var outcomeAt *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT fixture_id, predicted_at, home_team, away_team, league, kickoff,
		        over25_prob, over25_confidence, btts_prob, expected_goals, home_form, away_form,
		        status, home_goals, away_goals, over25_actual, btts_actual, outcome_at
		 FROM predictions WHERE fixture_id = $1`,
		fixtureID,
	).Scan(
		&p.FixtureID, &p.PredictedAt, &p.HomeTeam, &p.AwayTeam, &p.League, &p.Kickoff,
		&p.Over25Prob, &p.Over25Confidence, &p.BTTSProb, &p.ExpectedGoals, &p.HomeForm, &p.AwayForm,
		&p.Status, &homeGoals, &awayGoals, &over25Actual, &bttsActual, &outcomeAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get prediction %d", fixtureID)
	}

	if outcomeAt != nil {
		p.Outcome = &model.Outcome{
			FixtureID:    p.FixtureID,
			HomeGoals:    *homeGoals,
			AwayGoals:    *awayGoals,
			Over25Actual: *over25Actual,
			BTTSActual:   *bttsActual,
			RecordedAt:   *outcomeAt,
		}
	}
	return &p, nil
}

func (s *PostgresStore) ListPredictions(ctx context.Context, filter PredictionFilter) ([]model.Prediction, error) {
	query := `SELECT fixture_id, predicted_at, home_team, away_team, league, kickoff,
	                 over25_prob, over25_confidence, btts_prob, expected_goals, home_form, away_form,
	                 status, home_goals, away_goals, over25_actual, btts_actual, outcome_at
	          FROM predictions WHERE true`
	args := []any{}
	argIdx := 1

	if filter.League != "" {
		query += fmt.Sprintf(` AND league = $%d`, argIdx)
		args = append(args, filter.League)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.MinOver25Prob > 0 {
		query += fmt.Sprintf(` AND over25_prob >= $%d`, argIdx)
		args = append(args, filter.MinOver25Prob)
		argIdx++
	}
	if filter.MinBTTSProb > 0 {
		query += fmt.Sprintf(` AND btts_prob >= $%d`, argIdx)
		args = append(args, filter.MinBTTSProb)
		argIdx++
	}
	if filter.UpcomingOnly {
		query += fmt.Sprintf(` AND kickoff > $%d`, argIdx)
		args = append(args, time.Now().UTC())
		argIdx++
	}
	query += ` ORDER BY over25_prob DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list predictions")
	}
	defer rows.Close()

	var preds []model.Prediction
	for rows.Next() {
		var p model.Prediction
		var homeGoals, awayGoals *int
		var over25Actual, bttsActual *bool
		var outcomeAt *time.Time

		if err := rows.Scan(
			&p.FixtureID, &p.PredictedAt, &p.HomeTeam, &p.AwayTeam, &p.League, &p.Kickoff,
			&p.Over25Prob, &p.Over25Confidence, &p.BTTSProb, &p.ExpectedGoals, &p.HomeForm, &p.AwayForm,
			&p.Status, &homeGoals, &awayGoals, &over25Actual, &bttsActual, &outcomeAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prediction")
		}
		if outcomeAt != nil {
			p.Outcome = &model.Outcome{
				FixtureID:    p.FixtureID,
				HomeGoals:    *homeGoals,
				AwayGoals:    *awayGoals,
				Over25Actual: *over25Actual,
				BTTSActual:   *bttsActual,
				RecordedAt:   *outcomeAt,
			}
		}
		preds = append(preds, p)
	}
	return preds, eris.Wrap(rows.Err(), "postgres: list predictions iterate")
}

func (s *PostgresStore) RecordOutcome(ctx context.Context, fixtureID int64, homeGoals, awayGoals int) error {
	outcome := model.NewOutcome(fixtureID, homeGoals, awayGoals, time.Now().UTC())

	tag, err := s.pool.Exec(ctx,
		`UPDATE predictions SET home_goals = $1, away_goals = $2, over25_actual = $3, btts_actual = $4, outcome_at = $5, status = $6 WHERE fixture_id = $7`,
		outcome.HomeGoals, outcome.AwayGoals, outcome.Over25Actual, outcome.BTTSActual,
		outcome.RecordedAt, string(model.PredictionFinished), fixtureID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: record outcome %d", fixtureID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("prediction not found: %d", fixtureID)
	}
	return nil
}

func (s *PostgresStore) AccuracyStats(ctx context.Context, windowDays int) (model.AccuracyStats, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)

	stats := model.AccuracyStats{WindowDays: windowDays}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN (over25_prob >= $1) = over25_actual THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN (btts_prob >= $2) = btts_actual THEN 1 ELSE 0 END), 0)
		 FROM predictions
		 WHERE status = $3 AND predicted_at >= $4`,
		over25DecisionBoundary, bttsDecisionBoundary, string(model.PredictionFinished), cutoff,
	).Scan(&stats.Total, &stats.CorrectOver25, &stats.CorrectBTTS)
	if err != nil {
		return stats, eris.Wrap(err, "postgres: accuracy stats")
	}

	if stats.Total > 0 {
		stats.AccuracyOver25 = float64(stats.CorrectOver25) / float64(stats.Total)
		stats.AccuracyBTTS = float64(stats.CorrectBTTS) / float64(stats.Total)
	}
	return stats, nil
}

// matchUpserter merges imported seasons into the matches table. The conflict
// columns mirror the table's primary key.
var matchUpserter = db.Upserter{
	Table:    "matches",
	Columns:  []string{"league", "season", "match_date", "home_team", "away_team", "home_goals", "away_goals"},
	Conflict: []string{"league", "season", "match_date", "home_team", "away_team"},
}

// InsertArchiveMatches bulk-upserts historical results through a COPY into a
// temp table. A re-import refreshes the score columns of rows already present.
func (s *PostgresStore) InsertArchiveMatches(ctx context.Context, matches []model.ArchiveMatch) (int64, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []any{
			m.League, m.Season, m.Date.UTC(), m.HomeTeam, m.AwayTeam, m.HomeGoals, m.AwayGoals,
		})
	}
	n, err := matchUpserter.Merge(ctx, s.pool, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: archive insert")
	}
	return n, nil
}

func (s *PostgresStore) StartScan(ctx context.Context) (*model.ScanEntry, error) {
	entry := model.ScanEntry{
		ID:        uuid.New().String(),
		Status:    model.ScanRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scan_log (id, status, started_at) VALUES ($1, $2, $3)`,
		entry.ID, string(entry.Status), entry.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start scan")
	}
	return &entry, nil
}

func (s *PostgresStore) CompleteScan(ctx context.Context, scanID string, result ScanResult) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scan_log SET status = $1, completed_at = $2, fixtures_seen = $3, predictions_made = $4, errors = $5 WHERE id = $6`,
		string(model.ScanComplete), time.Now().UTC(),
		result.FixturesSeen, result.PredictionsMade, result.Errors, scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete scan %s", scanID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scan not found: %s", scanID)
	}
	return nil
}

func (s *PostgresStore) FailScan(ctx context.Context, scanID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scan_log SET status = $1, completed_at = $2, error = $3 WHERE id = $4`,
		string(model.ScanFailed), time.Now().UTC(), errMsg, scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail scan %s", scanID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scan not found: %s", scanID)
	}
	return nil
}

func (s *PostgresStore) ListScans(ctx context.Context, limit int) ([]model.ScanEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, fixtures_seen, predictions_made, errors, error
		 FROM scan_log ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scans")
	}
	defer rows.Close()

	var entries []model.ScanEntry
	for rows.Next() {
		var e model.ScanEntry
		var errMsg *string

		if err := rows.Scan(
			&e.ID, &e.Status, &e.StartedAt, &e.CompletedAt,
			&e.FixturesSeen, &e.PredictionsMade, &e.Errors, &errMsg,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan log entry")
		}
		if errMsg != nil {
			e.Error = *errMsg
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list scans iterate")
}
