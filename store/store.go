// Package store persists collections, decks, note types, notes and cards
// to SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"microdote/content"
	"microdote/scheduler"
)

// Store is the persistence interface the rest of the module talks to.
// Business logic never touches SQL directly.
type Store interface {
	CreateCollection(id, name string, crt int64) error
	GetCollection(id string) (*scheduler.Collection, error)

	CreateDeck(collectionID string, d *scheduler.Deck) error
	GetDeck(id int64) (*scheduler.Deck, error)
	ListDecks(collectionID string) ([]*scheduler.Deck, error)
	DeleteDeck(id int64) error

	CreateNoteType(collectionID string, nt *content.NoteType) error
	GetNoteType(collectionID string, name content.NoteTypeName) (*content.NoteType, error)
	ListNoteTypes(collectionID string) (map[content.NoteTypeName]content.NoteType, error)

	CreateNote(collectionID string, n *content.Note) error
	GetNote(id int64) (*content.Note, error)
	UpdateNote(n *content.Note) error
	DeleteNote(id int64) error
	FindDuplicateNotes(collectionID, fieldName, value string) ([]content.Note, error)

	CreateCard(deckID int64, c *content.Card) error
	GetCard(id int64) (*content.Card, error)
	UpdateCard(c *content.Card) error
	DeleteCard(id int64) error
	ListCardsInDeck(deckID int64) ([]*content.Card, error)
	GetDeckStats(deckID int64) (*DeckStats, error)
	DeckIDForCard(cardID int64) (int64, error)

	MaxID(table string) (int64, error)

	BeginTx() (*sql.Tx, error)
	Close() error
}

// DeckStats summarizes card counts by scheduling state for a deck.
type DeckStats struct {
	DeckID     int64
	TotalCards int
	New        int
	Learning   int
	Review     int
	Relearning int
	Suspended  int
	DueToday   int64
}

// SQLiteStore implements Store over a single SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
}

// NewSQLiteStore opens dbPath, runs pending migrations, and returns a Store.
func NewSQLiteStore(dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = log.Default()
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) BeginTx() (*sql.Tx, error) { return s.db.Begin() }

func (s *SQLiteStore) MaxID(table string) (int64, error) {
	var maxID sql.NullInt64
	query := fmt.Sprintf("SELECT MAX(id) FROM %s", table)
	if err := s.db.QueryRow(query).Scan(&maxID); err != nil {
		return 0, err
	}
	if maxID.Valid {
		return maxID.Int64, nil
	}
	return 0, nil
}

// Collections

func (s *SQLiteStore) CreateCollection(id, name string, crt int64) error {
	_, err := s.db.Exec(
		`INSERT INTO collections (id, name, crt) VALUES (?, ?, ?)`,
		id, name, crt,
	)
	return err
}

func (s *SQLiteStore) GetCollection(id string) (*scheduler.Collection, error) {
	row := s.db.QueryRow(`SELECT id, name, crt FROM collections WHERE id = ?`, id)

	var gotID, name string
	var crt int64
	if err := row.Scan(&gotID, &name, &crt); err != nil {
		return nil, err
	}

	col := scheduler.NewCollection(0, name, crt)

	decks, err := s.ListDecks(id)
	if err != nil {
		return nil, err
	}
	for _, d := range decks {
		d.Collection = col
	}
	col.Decks = decks
	return col, nil
}

// Decks

func (s *SQLiteStore) CreateDeck(collectionID string, d *scheduler.Deck) error {
	_, err := s.db.Exec(
		`INSERT INTO decks (id, collection_id, name) VALUES (?, ?, ?)`,
		d.ID, collectionID, d.Name,
	)
	return err
}

func (s *SQLiteStore) GetDeck(id int64) (*scheduler.Deck, error) {
	row := s.db.QueryRow(`SELECT id, name FROM decks WHERE id = ?`, id)

	deck := &scheduler.Deck{}
	if err := row.Scan(&deck.ID, &deck.Name); err != nil {
		return nil, err
	}

	cards, err := s.ListCardsInDeck(id)
	if err != nil {
		return nil, err
	}
	deck.Cards = make([]*scheduler.Card, 0, len(cards))
	for _, c := range cards {
		deck.Cards = append(deck.Cards, c.Card)
	}
	return deck, nil
}

func (s *SQLiteStore) ListDecks(collectionID string) ([]*scheduler.Deck, error) {
	rows, err := s.db.Query(`SELECT id FROM decks WHERE collection_id = ? ORDER BY name`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decks []*scheduler.Deck
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		d, err := s.GetDeck(id)
		if err != nil {
			return nil, err
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

func (s *SQLiteStore) DeleteDeck(id int64) error {
	_, err := s.db.Exec(`DELETE FROM decks WHERE id = ?`, id)
	return err
}

// Note types

func (s *SQLiteStore) CreateNoteType(collectionID string, nt *content.NoteType) error {
	fieldsJSON, err := json.Marshal(nt.Fields)
	if err != nil {
		return err
	}
	templatesJSON, err := json.Marshal(nt.Templates)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO note_types (collection_id, name, fields, templates) VALUES (?, ?, ?, ?)`,
		collectionID, string(nt.Name), fieldsJSON, templatesJSON,
	)
	return err
}

func (s *SQLiteStore) GetNoteType(collectionID string, name content.NoteTypeName) (*content.NoteType, error) {
	row := s.db.QueryRow(
		`SELECT name, fields, templates FROM note_types WHERE collection_id = ? AND name = ?`,
		collectionID, string(name),
	)
	return scanNoteType(row)
}

func (s *SQLiteStore) ListNoteTypes(collectionID string) (map[content.NoteTypeName]content.NoteType, error) {
	rows, err := s.db.Query(`SELECT name, fields, templates FROM note_types WHERE collection_id = ?`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[content.NoteTypeName]content.NoteType)
	for rows.Next() {
		nt, err := scanNoteType(rows)
		if err != nil {
			return nil, err
		}
		out[nt.Name] = *nt
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanNoteType(row scannable) (*content.NoteType, error) {
	var name string
	var fieldsJSON, templatesJSON []byte
	if err := row.Scan(&name, &fieldsJSON, &templatesJSON); err != nil {
		return nil, err
	}
	var fields []string
	var templates []content.CardTemplate
	if err := json.Unmarshal(fieldsJSON, &fields); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(templatesJSON, &templates); err != nil {
		return nil, err
	}
	return &content.NoteType{Name: content.NoteTypeName(name), Fields: fields, Templates: templates}, nil
}

// Notes

func (s *SQLiteStore) CreateNote(collectionID string, n *content.Note) error {
	fieldValsJSON, err := json.Marshal(n.FieldMap)
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(n.Tags())
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO notes (id, collection_id, type_name, field_vals, tags, created_at, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, collectionID, string(n.Type), fieldValsJSON, tagsJSON, n.CreatedAt.Unix(), n.ModifiedAt.Unix(),
	)
	return err
}

func (s *SQLiteStore) GetNote(id int64) (*content.Note, error) {
	row := s.db.QueryRow(
		`SELECT id, type_name, field_vals, tags, created_at, modified_at FROM notes WHERE id = ?`, id,
	)
	return scanNote(row)
}

func scanNote(row scannable) (*content.Note, error) {
	var id int64
	var typeName string
	var fieldValsJSON, tagsJSON []byte
	var createdAt, modifiedAt int64

	if err := row.Scan(&id, &typeName, &fieldValsJSON, &tagsJSON, &createdAt, &modifiedAt); err != nil {
		return nil, err
	}

	n := &content.Note{
		Note:       scheduler.NewNote(id),
		Type:       content.NoteTypeName(typeName),
		CreatedAt:  time.Unix(createdAt, 0),
		ModifiedAt: time.Unix(modifiedAt, 0),
	}
	if err := json.Unmarshal(fieldValsJSON, &n.FieldMap); err != nil {
		return nil, err
	}
	var tags []string
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &tags); err != nil {
			return nil, err
		}
	}
	for _, t := range tags {
		n.AddTag(t)
	}
	return n, nil
}

func (s *SQLiteStore) UpdateNote(n *content.Note) error {
	fieldValsJSON, err := json.Marshal(n.FieldMap)
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(n.Tags())
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`UPDATE notes SET type_name = ?, field_vals = ?, tags = ?, modified_at = ? WHERE id = ?`,
		string(n.Type), fieldValsJSON, tagsJSON, n.ModifiedAt.Unix(), n.ID,
	)
	return err
}

func (s *SQLiteStore) DeleteNote(id int64) error {
	_, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) FindDuplicateNotes(collectionID, fieldName, value string) ([]content.Note, error) {
	rows, err := s.db.Query(
		`SELECT id, type_name, field_vals, tags, created_at, modified_at FROM notes WHERE collection_id = ?`,
		collectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	needle := strings.ToLower(strings.TrimSpace(value))
	var dups []content.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		if v, ok := n.FieldMap[fieldName]; ok && strings.ToLower(strings.TrimSpace(v)) == needle {
			dups = append(dups, *n)
		}
	}
	return dups, rows.Err()
}

// Cards

func (s *SQLiteStore) CreateCard(deckID int64, c *content.Card) error {
	_, err := s.db.Exec(
		`INSERT INTO cards (id, note_id, deck_id, template_name, ordinal, front, back,
		                     crt, type, queue, ivl, factor, reps, lapses, left, due)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.NoteID, deckID, c.TemplateName, c.Ordinal, c.Front, c.Back,
		c.CRT, int(c.Type), int(c.Queue), c.Ivl, c.Factor, c.Reps, c.Lapses, c.Left, c.Due,
	)
	return err
}

func (s *SQLiteStore) GetCard(id int64) (*content.Card, error) {
	row := s.db.QueryRow(
		`SELECT id, note_id, deck_id, template_name, ordinal, front, back,
		        crt, type, queue, ivl, factor, reps, lapses, left, due
		 FROM cards WHERE id = ?`, id,
	)
	return s.scanCard(row)
}

func (s *SQLiteStore) scanCard(row scannable) (*content.Card, error) {
	var id, noteID, deckID int64
	var templateName, front, back string
	var ordinal int
	var crt int64
	var typ, queue int
	var ivl, factor, reps, lapses, left, due int64

	if err := row.Scan(&id, &noteID, &deckID, &templateName, &ordinal, &front, &back,
		&crt, &typ, &queue, &ivl, &factor, &reps, &lapses, &left, &due); err != nil {
		return nil, err
	}

	note, err := s.GetNote(noteID)
	if err != nil {
		return nil, fmt.Errorf("store: load note %d for card %d: %w", noteID, id, err)
	}

	sc := &scheduler.Card{
		ID:     id,
		NoteID: noteID,
		Note:   note.Note,
		CRT:    crt,
		Type:   scheduler.CardType(typ),
		Queue:  scheduler.CardQueue(queue),
		Ivl:    ivl,
		Factor: factor,
		Reps:   reps,
		Lapses: lapses,
		Left:   left,
		Due:    due,
	}

	return &content.Card{Card: sc, TemplateName: templateName, Ordinal: ordinal, Front: front, Back: back}, nil
}

func (s *SQLiteStore) UpdateCard(c *content.Card) error {
	_, err := s.db.Exec(
		`UPDATE cards SET template_name = ?, ordinal = ?, front = ?, back = ?,
		                  type = ?, queue = ?, ivl = ?, factor = ?, reps = ?, lapses = ?, left = ?, due = ?
		 WHERE id = ?`,
		c.TemplateName, c.Ordinal, c.Front, c.Back,
		int(c.Type), int(c.Queue), c.Ivl, c.Factor, c.Reps, c.Lapses, c.Left, c.Due, c.ID,
	)
	return err
}

func (s *SQLiteStore) DeleteCard(id int64) error {
	_, err := s.db.Exec(`DELETE FROM cards WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) ListCardsInDeck(deckID int64) ([]*content.Card, error) {
	rows, err := s.db.Query(`SELECT id FROM cards WHERE deck_id = ? ORDER BY id`, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cards := make([]*content.Card, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCard(id)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func (s *SQLiteStore) DeckIDForCard(cardID int64) (int64, error) {
	var deckID int64
	err := s.db.QueryRow(`SELECT deck_id FROM cards WHERE id = ?`, cardID).Scan(&deckID)
	return deckID, err
}

func (s *SQLiteStore) GetDeckStats(deckID int64) (*DeckStats, error) {
	stats := &DeckStats{DeckID: deckID}

	rows, err := s.db.Query(`SELECT type, queue, due FROM cards WHERE deck_id = ?`, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var typ, queue int
		var due int64
		if err := rows.Scan(&typ, &queue, &due); err != nil {
			return nil, err
		}
		stats.TotalCards++

		if scheduler.CardQueue(queue) == scheduler.QueueSuspended {
			stats.Suspended++
			continue
		}

		switch scheduler.CardType(typ) {
		case scheduler.CardTypeNew:
			stats.New++
		case scheduler.CardTypeLearning:
			stats.Learning++
		case scheduler.CardTypeReview:
			stats.Review++
		case scheduler.CardTypeRelearning:
			stats.Relearning++
		}
	}
	return stats, rows.Err()
}
