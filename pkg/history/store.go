// Package history implements the local relational store (component
// persisted-state per spec.md §6): one row per prior validate run,
// keyed by cluster context, retained up to 20 runs per context.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// maxRunsPerContext is the retention bound enforced after every Save.
const maxRunsPerContext = 20

// Record is one persisted run row.
type Record struct {
	ID                     int64  `db:"id"`
	ClusterContext         string `db:"cluster_context"`
	RunAt                  string `db:"run_at"` // RFC3339, stamped by the caller
	ClusterSummary         string `db:"cluster_summary"`
	ChecksJSON             string `db:"checks_json"`
	DashboardsJSON         string `db:"dashboards_json"`
	RecommendationsJSON    string `db:"recommendations_json"`
	RemediationJSON        string `db:"remediation_json"`
	DashboardsToImportJSON string `db:"dashboards_to_import_json"`
	PlanHash               string `db:"plan_hash"`
}

// Store wraps a sqlite-backed history_runs table.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if absent) the sqlite database at path and
// ensures the schema is current.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts a new run row, then prunes rows beyond the most recent
// maxRunsPerContext for that cluster context.
func (s *Store) Save(r Record) error {
	_, err := s.db.Exec(
		`INSERT INTO history_runs
			(cluster_context, run_at, cluster_summary, checks_json, dashboards_json,
			 recommendations_json, remediation_json, dashboards_to_import_json, plan_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ClusterContext, r.RunAt, r.ClusterSummary, r.ChecksJSON, r.DashboardsJSON,
		r.RecommendationsJSON, r.RemediationJSON, r.DashboardsToImportJSON, r.PlanHash,
	)
	if err != nil {
		return fmt.Errorf("history: save: %w", err)
	}
	return s.prune(r.ClusterContext)
}

func (s *Store) prune(clusterContext string) error {
	_, err := s.db.Exec(
		`DELETE FROM history_runs
		 WHERE cluster_context = ?
		   AND id NOT IN (
		       SELECT id FROM history_runs
		       WHERE cluster_context = ?
		       ORDER BY run_at DESC, id DESC
		       LIMIT ?
		   )`,
		clusterContext, clusterContext, maxRunsPerContext,
	)
	if err != nil {
		return fmt.Errorf("history: prune: %w", err)
	}
	return nil
}

// Recent returns up to limit most-recent runs for a cluster context,
// newest first.
func (s *Store) Recent(clusterContext string, limit int) ([]Record, error) {
	var out []Record
	err := s.db.Select(&out,
		`SELECT id, cluster_context, run_at, cluster_summary, checks_json, dashboards_json,
		        recommendations_json, remediation_json, dashboards_to_import_json, plan_hash
		 FROM history_runs
		 WHERE cluster_context = ?
		 ORDER BY run_at DESC, id DESC
		 LIMIT ?`,
		clusterContext, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	return out, nil
}

// Latest returns the most recent run for a cluster context, if any.
func (s *Store) Latest(clusterContext string) (Record, bool, error) {
	recs, err := s.Recent(clusterContext, 1)
	if err != nil {
		return Record{}, false, err
	}
	if len(recs) == 0 {
		return Record{}, false, nil
	}
	return recs[0], true, nil
}

// ComputeHash computes the stable plan_hash for any JSON-serializable
// report, used to detect whether consecutive runs produced an
// unchanged report.
func ComputeHash(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("history: hash: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
