package scheduler

// Collection anchors the day-zero timestamp every Deck's day offsets are
// computed from.
type Collection struct {
	ID    int64
	Name  string
	CRT   int64 // epoch seconds at the start of the creation day, UTC
	Decks []*Deck
}

// NewCollection constructs a Collection with the given day-zero anchor.
func NewCollection(id int64, name string, crt int64) *Collection {
	return &Collection{ID: id, Name: name, CRT: crt}
}

// NewDeck creates a deck owned by this collection and appends it to Decks.
func (c *Collection) NewDeck(id int64, name string) *Deck {
	d := &Deck{ID: id, Name: name, Collection: c}
	c.Decks = append(c.Decks, d)
	return d
}

// Deck owns an ordered sequence of Cards and, once scheduling begins, a
// Scheduler. Deck and Collection hold no scheduling logic of their own —
// they are collaborators the Scheduler reads from and mutates into.
type Deck struct {
	ID         int64
	Name       string
	Cards      []*Card
	Collection *Collection
	Scheduler  *Scheduler
}

// AddCard appends a new NEW-state card to the deck.
func (d *Deck) AddCard(id, noteID int64, note *Note, crt int64) *Card {
	c := NewCard(id, noteID, note, crt)
	d.Cards = append(d.Cards, c)
	return c
}

// creationCRT returns the deck's day-zero anchor, or 0 if the deck is
// detached from a collection (spec section 7: non-fatal, today clamps to 0).
func (d *Deck) creationCRT() (crt int64, attached bool) {
	if d.Collection == nil {
		return 0, false
	}
	return d.Collection.CRT, true
}
