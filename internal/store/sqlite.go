package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/matchday-labs/goalscan/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend for single-host deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS predictions (
	fixture_id        INTEGER PRIMARY KEY,
	predicted_at      DATETIME NOT NULL,
	home_team         TEXT NOT NULL,
	away_team         TEXT NOT NULL,
	league            TEXT NOT NULL,
	kickoff           DATETIME NOT NULL,
	over25_prob       REAL NOT NULL,
	over25_confidence TEXT NOT NULL,
	btts_prob         REAL NOT NULL,
	expected_goals    REAL NOT NULL,
	home_form         REAL NOT NULL,
	away_form         REAL NOT NULL,
	status            TEXT NOT NULL DEFAULT 'PENDING',
	home_goals        INTEGER,
	away_goals        INTEGER,
	over25_actual     INTEGER,
	btts_actual       INTEGER,
	outcome_at        DATETIME
);

CREATE TABLE IF NOT EXISTS scan_log (
	id               TEXT PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'running',
	started_at       DATETIME NOT NULL,
	completed_at     DATETIME,
	fixtures_seen    INTEGER NOT NULL DEFAULT 0,
	predictions_made INTEGER NOT NULL DEFAULT 0,
	errors           INTEGER NOT NULL DEFAULT 0,
	error            TEXT
);

CREATE TABLE IF NOT EXISTS matches (
	league     TEXT NOT NULL,
	season     TEXT NOT NULL,
	match_date DATETIME NOT NULL,
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Exists(ctx context.Context, fixtureID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM predictions WHERE fixture_id = ?`, fixtureID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: exists %d", fixtureID)
	}
	return true, nil
}

// InsertPrediction upserts by fixture id. A re-insert refreshes the
// prediction columns but leaves status and any recorded outcome alone.
func (s *SQLiteStore) InsertPrediction(ctx context.Context, p model.Prediction) error {
	if p.Status == "" {
		p.Status = model.PredictionPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions
		 (fixture_id, predicted_at, home_team, away_team, league, kickoff,
		  over25_prob, over25_confidence, btts_prob, expected_goals, home_form, away_form, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fixture_id) DO UPDATE SET
		  predicted_at = excluded.predicted_at,
		  home_team = excluded.home_team,
		  away_team = excluded.away_team,
		  league = excluded.league,
		  kickoff = excluded.kickoff,
		  over25_prob = excluded.over25_prob,
		  over25_confidence = excluded.over25_confidence,
		  btts_prob = excluded.btts_prob,
		  expected_goals = excluded.expected_goals,
		  home_form = excluded.home_form,
		  away_form = excluded.away_form`,
		p.FixtureID, p.PredictedAt.UTC(), p.HomeTeam, p.AwayTeam, p.League, p.Kickoff.UTC(),
		p.Over25Prob, string(p.Over25Confidence), p.BTTSProb, p.ExpectedGoals,
		p.HomeForm, p.AwayForm, string(p.Status),
	)
	return eris.Wrapf(err, "sqlite: insert prediction %d", p.FixtureID)
}

func (s *SQLiteStore) GetPrediction(ctx context.Context, fixtureID int64) (*model.Prediction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fixture_id, predicted_at, home_team, away_team, league, kickoff,
		        over25_prob, over25_confidence, btts_prob, expected_goals, home_form, away_form,
		        status, home_goals, away_goals, over25_actual, btts_actual, outcome_at
		 FROM predictions WHERE fixture_id = ?`,
		fixtureID,
	)
	return scanPrediction(row)
}

func (s *SQLiteStore) ListPredictions(ctx context.Context, filter PredictionFilter) ([]model.Prediction, error) {
	query := `SELECT fixture_id, predicted_at, home_team, away_team, league, kickoff,
	                 over25_prob, over25_confidence, btts_prob, expected_goals, home_form, away_form,
	                 status, home_goals, away_goals, over25_actual, btts_actual, outcome_at
	          FROM predictions WHERE 1=1`
	var args []any

	if filter.League != "" {
		query += ` AND league = ?`
		args = append(args, filter.League)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.MinOver25Prob > 0 {
		query += ` AND over25_prob >= ?`
		args = append(args, filter.MinOver25Prob)
	}
	if filter.MinBTTSProb > 0 {
		query += ` AND btts_prob >= ?`
		args = append(args, filter.MinBTTSProb)
	}
	if filter.UpcomingOnly {
		query += ` AND kickoff > ?`
		args = append(args, time.Now().UTC())
	}
	query += ` ORDER BY over25_prob DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list predictions")
	}
	defer rows.Close()

	var preds []model.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		preds = append(preds, *p)
	}
	return preds, eris.Wrap(rows.Err(), "sqlite: list predictions iterate")
}

func (s *SQLiteStore) RecordOutcome(ctx context.Context, fixtureID int64, homeGoals, awayGoals int) error {
	outcome := model.NewOutcome(fixtureID, homeGoals, awayGoals, time.Now().UTC())

	res, err := s.db.ExecContext(ctx,
		`UPDATE predictions
		 SET home_goals = ?, away_goals = ?, over25_actual = ?, btts_actual = ?,
		     outcome_at = ?, status = ?
		 WHERE fixture_id = ?`,
		outcome.HomeGoals, outcome.AwayGoals, outcome.Over25Actual, outcome.BTTSActual,
		outcome.RecordedAt, string(model.PredictionFinished), fixtureID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record outcome %d", fixtureID)
	}
	return checkRowsAffected(res, "prediction", fixtureID)
}

func (s *SQLiteStore) AccuracyStats(ctx context.Context, windowDays int) (model.AccuracyStats, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)

	stats := model.AccuracyStats{WindowDays: windowDays}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN (over25_prob >= ?) = over25_actual THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN (btts_prob >= ?) = btts_actual THEN 1 ELSE 0 END), 0)
		 FROM predictions
		 WHERE status = ? AND predicted_at >= ?`,
		over25DecisionBoundary, bttsDecisionBoundary, string(model.PredictionFinished), cutoff,
	).Scan(&stats.Total, &stats.CorrectOver25, &stats.CorrectBTTS)
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: accuracy stats")
	}

	if stats.Total > 0 {
		stats.AccuracyOver25 = float64(stats.CorrectOver25) / float64(stats.Total)
		stats.AccuracyBTTS = float64(stats.CorrectBTTS) / float64(stats.Total)
	}
	return stats, nil
}

// InsertArchiveMatches upserts historical results in a single transaction.
// A re-import refreshes the score columns of rows already present.
func (s *SQLiteStore) InsertArchiveMatches(ctx context.Context, matches []model.ArchiveMatch) (int64, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin archive insert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO matches
		 (league, season, match_date, home_team, away_team, home_goals, away_goals)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(league, season, match_date, home_team, away_team) DO UPDATE SET
		  home_goals = excluded.home_goals,
		  away_goals = excluded.away_goals`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare archive insert")
	}
	defer stmt.Close()

	for _, m := range matches {
		if _, err := stmt.ExecContext(ctx,
			m.League, m.Season, m.Date.UTC(), m.HomeTeam, m.AwayTeam, m.HomeGoals, m.AwayGoals,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert match %s v %s", m.HomeTeam, m.AwayTeam)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit archive insert")
	}
	return int64(len(matches)), nil
}

func (s *SQLiteStore) StartScan(ctx context.Context) (*model.ScanEntry, error) {
	entry := model.ScanEntry{
		ID:        uuid.New().String(),
		Status:    model.ScanRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_log (id, status, started_at) VALUES (?, ?, ?)`,
		entry.ID, string(entry.Status), entry.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start scan")
	}
	return &entry, nil
}

func (s *SQLiteStore) CompleteScan(ctx context.Context, scanID string, result ScanResult) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scan_log
		 SET status = ?, completed_at = ?, fixtures_seen = ?, predictions_made = ?, errors = ?
		 WHERE id = ?`,
		string(model.ScanComplete), time.Now().UTC(),
		result.FixturesSeen, result.PredictionsMade, result.Errors, scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete scan %s", scanID)
	}
	return checkRowsAffectedStr(res, "scan", scanID)
}

func (s *SQLiteStore) FailScan(ctx context.Context, scanID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scan_log SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(model.ScanFailed), time.Now().UTC(), errMsg, scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail scan %s", scanID)
	}
	return checkRowsAffectedStr(res, "scan", scanID)
}

func (s *SQLiteStore) ListScans(ctx context.Context, limit int) ([]model.ScanEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, completed_at, fixtures_seen, predictions_made, errors, error
		 FROM scan_log ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scans")
	}
	defer rows.Close()

	var entries []model.ScanEntry
	for rows.Next() {
		e, err := scanScanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list scans iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

func checkRowsAffectedStr(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPrediction(row scannable) (*model.Prediction, error) {
	var p model.Prediction
	var homeGoals, awayGoals sql.NullInt64
	var over25Actual, bttsActual sql.NullBool
	var outcomeAt sql.NullTime

	err := row.Scan(
		&p.FixtureID, &p.PredictedAt, &p.HomeTeam, &p.AwayTeam, &p.League, &p.Kickoff,
		&p.Over25Prob, &p.Over25Confidence, &p.BTTSProb, &p.ExpectedGoals, &p.HomeForm, &p.AwayForm,
		&p.Status, &homeGoals, &awayGoals, &over25Actual, &bttsActual, &outcomeAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan prediction")
	}

	if outcomeAt.Valid {
		p.Outcome = &model.Outcome{
			FixtureID:    p.FixtureID,
			HomeGoals:    int(homeGoals.Int64),
			AwayGoals:    int(awayGoals.Int64),
			Over25Actual: over25Actual.Bool,
			BTTSActual:   bttsActual.Bool,
			RecordedAt:   outcomeAt.Time,
		}
	}
	return &p, nil
}

func scanScanEntry(row scannable) (*model.ScanEntry, error) {
	var e model.ScanEntry
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(
		&e.ID, &e.Status, &e.StartedAt, &completedAt,
		&e.FixturesSeen, &e.PredictionsMade, &e.Errors, &errMsg,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan log entry")
	}

	if completedAt.Valid {
		t := completedAt.Time
		e.CompletedAt = &t
	}
	if errMsg.Valid {
		e.Error = errMsg.String
	}
	return &e, nil
}
