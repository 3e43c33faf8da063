// Package duckdb persists series, fit results and model comparisons in a
// DuckDB database keyed by run id.
package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/peter-kozarec/declinefit/pkg/fit"
	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/tools/objective"
	"github.com/peter-kozarec/declinefit/pkg/utility"
	"github.com/peter-kozarec/declinefit/pkg/validation"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS series (
		run_id VARCHAR NOT NULL,
		idx    INTEGER NOT NULL,
		"time" DOUBLE NOT NULL,
		rate   DOUBLE NOT NULL,
		PRIMARY KEY (run_id, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS fits (
		run_id          VARCHAR NOT NULL,
		model           VARCHAR NOT NULL,
		objective       VARCHAR NOT NULL,
		success         BOOLEAN NOT NULL,
		loss            DOUBLE,
		aic             DOUBLE,
		bic             DOUBLE,
		n_obs           INTEGER,
		n_params        INTEGER,
		message         VARCHAR,
		params_json     VARCHAR,
		covariance_json VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS comparisons (
		run_id      VARCHAR NOT NULL,
		"rank"      INTEGER NOT NULL,
		model       VARCHAR NOT NULL,
		bic         DOUBLE,
		aic         DOUBLE,
		cv_rmse     DOUBLE,
		loss        DOUBLE,
		success     BOOLEAN,
		params_json VARCHAR,
		PRIMARY KEY (run_id, "rank")
	)`,
}

type Store struct {
	dataSourceName string
	db             *sql.DB
}

// Open connects to dataSourceName (empty for an in-memory database) and
// creates the tables when missing.
func Open(ctx context.Context, dataSourceName string) (*Store, error) {
	db, err := sql.Open("duckdb", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("unable to open duckdb %q: %w", dataSourceName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to connect to duckdb %q: %w", dataSourceName, err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("error creating schema: %w", err)
		}
	}
	return &Store{dataSourceName: dataSourceName, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveSeries(ctx context.Context, runID utility.RunID, t, q []float64) error {
	if len(t) != len(q) {
		return fmt.Errorf("%w: len(t)=%d len(q)=%d", fit.ErrLengthMismatch, len(t), len(q))
	}
	return s.inTx(ctx, `INSERT INTO series (run_id, idx, "time", rate) VALUES (?, ?, ?, ?)`, func(stmt *sql.Stmt) error {
		for i := range t {
			if _, err := stmt.ExecContext(ctx, runID.String(), i, t[i], q[i]); err != nil {
				return fmt.Errorf("error inserting sample %d: %w", i, err)
			}
		}
		return nil
	})
}

func (s *Store) LoadSeries(ctx context.Context, runID utility.RunID) ([]float64, []float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT "time", rate FROM series WHERE run_id = ? ORDER BY idx`, runID.String())
	if err != nil {
		return nil, nil, fmt.Errorf("error querying series: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var t, q []float64
	for rows.Next() {
		var ti, qi float64
		if err := rows.Scan(&ti, &qi); err != nil {
			return nil, nil, fmt.Errorf("error scanning row: %w", err)
		}
		t = append(t, ti)
		q = append(q, qi)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error scanning rows: %w", err)
	}
	return t, q, nil
}

func (s *Store) SaveFit(ctx context.Context, runID utility.RunID, res fit.Result) error {
	params, err := json.Marshal(res.Params)
	if err != nil {
		return fmt.Errorf("error encoding params: %w", err)
	}
	cov, err := json.Marshal(res.Covariance)
	if err != nil {
		return fmt.Errorf("error encoding covariance: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO fits (
		run_id, model, objective, success, loss, aic, bic,
		n_obs, n_params, message, params_json, covariance_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID.String(), res.Model.String(), string(res.Objective), res.Success,
		res.Loss, res.AIC, res.BIC, res.NObs, res.NParams, res.Message,
		string(params), string(cov))
	if err != nil {
		return fmt.Errorf("error inserting fit: %w", err)
	}
	return nil
}

func (s *Store) LoadFits(ctx context.Context, runID utility.RunID) ([]fit.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT model, objective, success, loss, aic, bic, n_obs, n_params, message, params_json, covariance_json
	FROM fits WHERE run_id = ? ORDER BY model`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("error querying fits: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var out []fit.Result
	for rows.Next() {
		var (
			res            fit.Result
			model, kind    string
			params, covRaw string
		)
		if err := rows.Scan(&model, &kind, &res.Success, &res.Loss, &res.AIC, &res.BIC,
			&res.NObs, &res.NParams, &res.Message, &params, &covRaw); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		res.Model = decline.Family(model)
		res.Objective = objective.Kind(kind)
		if err := json.Unmarshal([]byte(params), &res.Params); err != nil {
			return nil, fmt.Errorf("error decoding params: %w", err)
		}
		if err := json.Unmarshal([]byte(covRaw), &res.Covariance); err != nil {
			return nil, fmt.Errorf("error decoding covariance: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}
	return out, nil
}

func (s *Store) SaveComparison(ctx context.Context, runID utility.RunID, rows []validation.Comparison) error {
	return s.inTx(ctx, `
	INSERT INTO comparisons (run_id, "rank", model, bic, aic, cv_rmse, loss, success, params_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, func(stmt *sql.Stmt) error {
		for rank, row := range rows {
			params, err := json.Marshal(row.Params)
			if err != nil {
				return fmt.Errorf("error encoding params: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, runID.String(), rank, row.Model.String(),
				row.BIC, row.AIC, row.CVRMSE, row.Loss, row.Success, string(params)); err != nil {
				return fmt.Errorf("error inserting comparison row %d: %w", rank, err)
			}
		}
		return nil
	})
}

// LoadComparison returns the ranked rows of a run. Only the columns kept in
// the comparisons table are populated.
func (s *Store) LoadComparison(ctx context.Context, runID utility.RunID) ([]validation.Comparison, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT model, bic, aic, cv_rmse, loss, success, params_json
	FROM comparisons WHERE run_id = ? ORDER BY "rank"`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("error querying comparisons: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var out []validation.Comparison
	for rows.Next() {
		var (
			row           validation.Comparison
			model, params string
		)
		if err := rows.Scan(&model, &row.BIC, &row.AIC, &row.CVRMSE, &row.Loss, &row.Success, &params); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		row.Model = decline.Family(model)
		if err := json.Unmarshal([]byte(params), &row.Params); err != nil {
			return nil, fmt.Errorf("error decoding params: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}
	return out, nil
}

func (s *Store) inTx(ctx context.Context, query string, fn func(stmt *sql.Stmt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("error preparing statement: %w", err)
	}
	if err := fn(stmt); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return err
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("error closing statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}
