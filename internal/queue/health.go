package queue

import (
	"context"
	"os"
	"strconv"
)

var expectedColumns = []string{
	"id", "chat_id", "user_id", "media_kind", "operation", "input_paths", "params_json",
	"status", "progress_percent", "progress_message", "output_paths", "error_message",
	"delivered", "created_at", "updated_at", "started_at", "finished_at",
}

// CheckHealth inspects the database file, schema, and integrity for the
// diagnostics surface. It degrades gracefully: every failure is recorded in
// the returned struct rather than aborting the remaining checks.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if _, err := os.Stat(s.path); err != nil {
		health.Error = "database file not accessible: " + err.Error()
		return health, nil
	}
	health.DatabaseExists = true

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		health.Error = "read schema version: " + err.Error()
		return health, nil
	}
	health.DatabaseReadable = true
	health.SchemaVersion = strconv.Itoa(version)

	jobsTable, err := s.tableExists(ctx, "jobs")
	if err != nil {
		health.Error = "check jobs table: " + err.Error()
		return health, nil
	}
	health.TableExists = jobsTable
	if !health.TableExists {
		health.MissingColumns = append(health.MissingColumns, expectedColumns...)
		return health, nil
	}

	present := make(map[string]struct{})
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(jobs)")
	if err != nil {
		health.Error = "read table info: " + err.Error()
		return health, nil
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			health.Error = "scan table info: " + err.Error()
			return health, nil
		}
		present[name] = struct{}{}
		health.ColumnsPresent = append(health.ColumnsPresent, name)
	}
	for _, column := range expectedColumns {
		if _, ok := present[column]; !ok {
			health.MissingColumns = append(health.MissingColumns, column)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err == nil {
		health.IntegrityCheck = integrity == "ok"
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM jobs").Scan(&health.TotalJobs); err != nil {
		health.Error = "count jobs: " + err.Error()
	}
	return health, nil
}
