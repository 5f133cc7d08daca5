package store

import (
	"database/sql"
	"fmt"
)

func (s *SQLiteStore) migrate() error {
	if err := s.ensureMetadataTable(); err != nil {
		return err
	}

	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	migrations := []struct {
		version int
		name    string
		fn      func() error
	}{
		{1, "initial_schema", s.runMigration001InitialSchema},
	}

	for _, m := range migrations {
		if version < m.version {
			s.logger.Printf("running migration %d: %s", m.version, m.name)
			if err := m.fn(); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
			if err := s.setSchemaVersion(m.version); err != nil {
				return fmt.Errorf("failed to update schema version: %w", err)
			}
			version = m.version
		}
	}

	s.logger.Printf("database schema up to date (version %d)", version)
	return nil
}

func (s *SQLiteStore) ensureMetadataTable() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT)`)
	return err
}

func (s *SQLiteStore) getSchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}

func (s *SQLiteStore) setSchemaVersion(version int) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`, fmt.Sprintf("%d", version))
	return err
}

func (s *SQLiteStore) runMigration001InitialSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		crt INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS decks (
		id INTEGER PRIMARY KEY,
		collection_id TEXT NOT NULL,
		name TEXT NOT NULL,
		FOREIGN KEY (collection_id) REFERENCES collections(id)
	);

	CREATE TABLE IF NOT EXISTS note_types (
		collection_id TEXT NOT NULL,
		name TEXT NOT NULL,
		fields TEXT NOT NULL,
		templates TEXT NOT NULL,
		PRIMARY KEY (collection_id, name),
		FOREIGN KEY (collection_id) REFERENCES collections(id)
	);

	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY,
		collection_id TEXT NOT NULL,
		type_name TEXT NOT NULL,
		field_vals TEXT NOT NULL,
		tags TEXT,
		created_at INTEGER,
		modified_at INTEGER,
		FOREIGN KEY (collection_id) REFERENCES collections(id)
	);

	CREATE TABLE IF NOT EXISTS cards (
		id INTEGER PRIMARY KEY,
		note_id INTEGER NOT NULL,
		deck_id INTEGER NOT NULL,
		template_name TEXT NOT NULL,
		ordinal INTEGER DEFAULT 0,
		front TEXT,
		back TEXT,
		crt INTEGER NOT NULL,
		type INTEGER NOT NULL,
		queue INTEGER NOT NULL,
		ivl INTEGER DEFAULT 0,
		factor INTEGER DEFAULT 0,
		reps INTEGER DEFAULT 0,
		lapses INTEGER DEFAULT 0,
		left INTEGER DEFAULT 0,
		due INTEGER DEFAULT 0,
		FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE,
		FOREIGN KEY (deck_id) REFERENCES decks(id)
	);

	CREATE INDEX IF NOT EXISTS idx_cards_due ON cards(queue, due, deck_id);
	CREATE INDEX IF NOT EXISTS idx_cards_note ON cards(note_id);
	CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards(deck_id);
	CREATE INDEX IF NOT EXISTS idx_notes_collection ON notes(collection_id);
	CREATE INDEX IF NOT EXISTS idx_decks_collection ON decks(collection_id);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
