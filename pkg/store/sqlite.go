package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
)

// SQLiteStore implements ModelStore and KnowledgeStore on SQLite.
// It is suitable for single-instance deployments where records must survive
// restarts. The database is opened in WAL mode with a busy timeout so the
// gateway's read paths do not block behind administrative writes.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) a SQLite-backed store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the tables if they do not exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS models (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		base_model_id TEXT,
		params TEXT,
		access_control TEXT
	);

	CREATE TABLE IF NOT EXISTS knowledge_bases (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		user_id TEXT NOT NULL,
		access_control TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetModel implements ModelStore.
func (s *SQLiteStore) GetModel(id string) (*ModelRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, base_model_id, params, access_control
		FROM models WHERE id = ?
	`, id)

	var rec ModelRecord
	var baseModel sql.NullString
	var params, control sql.NullString
	err := row.Scan(&rec.ID, &rec.UserID, &baseModel, &params, &control)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model %q: %w", id, err)
	}

	rec.BaseModelID = baseModel.String
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &rec.Params); err != nil {
			return nil, fmt.Errorf("corrupt params for model %q: %w", id, err)
		}
	}
	if control.Valid && control.String != "" {
		rec.AccessControl = &access.Control{}
		if err := json.Unmarshal([]byte(control.String), rec.AccessControl); err != nil {
			return nil, fmt.Errorf("corrupt access control for model %q: %w", id, err)
		}
	}

	return &rec, nil
}

// UpsertModel implements ModelStore.
func (s *SQLiteStore) UpsertModel(rec *ModelRecord) error {
	params, control, err := marshalJSONColumns(rec.Params, rec.AccessControl)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO models (id, user_id, base_model_id, params, access_control)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			base_model_id = excluded.base_model_id,
			params = excluded.params,
			access_control = excluded.access_control
	`, rec.ID, rec.UserID, rec.BaseModelID, params, control)
	if err != nil {
		return fmt.Errorf("failed to save model %q: %w", rec.ID, err)
	}
	return nil
}

// DeleteModel implements ModelStore.
func (s *SQLiteStore) DeleteModel(id string) error {
	_, err := s.db.Exec(`DELETE FROM models WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete model %q: %w", id, err)
	}
	return nil
}

// ListKnowledge implements KnowledgeStore.
func (s *SQLiteStore) ListKnowledge() ([]*KnowledgeRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, user_id, access_control
		FROM knowledge_bases ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	defer rows.Close()

	var recs []*KnowledgeRecord
	for rows.Next() {
		var rec KnowledgeRecord
		var desc, control sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Name, &desc, &rec.UserID, &control); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge base: %w", err)
		}
		rec.Description = desc.String
		if control.Valid && control.String != "" {
			rec.AccessControl = &access.Control{}
			if err := json.Unmarshal([]byte(control.String), rec.AccessControl); err != nil {
				return nil, fmt.Errorf("corrupt access control for knowledge base %q: %w", rec.ID, err)
			}
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// UpsertKnowledge implements KnowledgeStore.
func (s *SQLiteStore) UpsertKnowledge(rec *KnowledgeRecord) error {
	_, control, err := marshalJSONColumns(nil, rec.AccessControl)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO knowledge_bases (id, name, description, user_id, access_control)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			user_id = excluded.user_id,
			access_control = excluded.access_control
	`, rec.ID, rec.Name, rec.Description, rec.UserID, control)
	if err != nil {
		return fmt.Errorf("failed to save knowledge base %q: %w", rec.ID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// marshalJSONColumns serializes the optional JSON columns, mapping empty
// values to NULL-friendly empty strings.
func marshalJSONColumns(params map[string]any, control *access.Control) (string, string, error) {
	var paramsJSON, controlJSON string

	if len(params) > 0 {
		b, err := json.Marshal(params)
		if err != nil {
			return "", "", fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsJSON = string(b)
	}

	if control != nil {
		b, err := json.Marshal(control)
		if err != nil {
			return "", "", fmt.Errorf("failed to marshal access control: %w", err)
		}
		controlJSON = string(b)
	}

	return paramsJSON, controlJSON, nil
}
