package history

const schemaVersion = 1

const createTables = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS history_runs (
	id                         INTEGER PRIMARY KEY AUTOINCREMENT,
	cluster_context            TEXT NOT NULL,
	run_at                     TEXT NOT NULL,
	cluster_summary            TEXT NOT NULL,
	checks_json                TEXT NOT NULL,
	dashboards_json            TEXT NOT NULL,
	recommendations_json       TEXT NOT NULL,
	remediation_json           TEXT NOT NULL,
	dashboards_to_import_json  TEXT NOT NULL,
	plan_hash                  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_runs_cluster_context ON history_runs (cluster_context);
CREATE INDEX IF NOT EXISTS idx_history_runs_run_at ON history_runs (run_at DESC);
`

func (s *Store) migrate() error {
	if _, err := s.db.Exec(createTables); err != nil {
		return err
	}

	var count int
	if err := s.db.Get(&count, `SELECT COUNT(*) FROM schema_migrations`); err != nil {
		return err
	}
	if count == 0 {
		if _, err := s.db.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, schemaVersion); err != nil {
			return err
		}
	}
	return nil
}
