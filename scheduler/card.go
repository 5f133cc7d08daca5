package scheduler

// CardType is the card's scheduling stage.
type CardType int

const (
	CardTypeNew CardType = iota
	CardTypeLearning
	CardTypeReview
	CardTypeRelearning
)

// CardQueue is the card's current eligibility for presentation. Unlike
// CardType (the stage a card is progressing through), Queue is what the
// QueueManager actually selects on.
type CardQueue int

const (
	QueueSuspended CardQueue = -1
	QueueNew       CardQueue = 0
	QueueLearning  CardQueue = 1
	QueueReview    CardQueue = 2
)

// Card is a single scheduled item. Identity (ID, NoteID, CRT) is immutable
// after creation; everything else is mutated in place by the Scheduler.
//
// Due is polymorphic on Queue: for QueueNew it holds the owning Note's ID
// (insertion order), for QueueLearning an epoch-second deadline, for
// QueueReview a day offset from the collection's creation timestamp.
type Card struct {
	ID     int64
	NoteID int64
	Note   *Note // back-pointer, immutable reference; Note itself is mutable
	CRT    int64 // creation epoch-second

	Type  CardType
	Queue CardQueue

	Ivl    int64 // days once in REVIEW; 0 for NEW
	Factor int64 // ease in permille; 0 for NEW, 2500 on first graduation, floored at 1300
	Reps   int64 // lifetime review count
	Lapses int64 // lifetime Again count while in REVIEW
	Left   int64 // today_steps*1000 + total_steps_remaining
	Due    int64
}

// NewCard constructs a card in the NEW state, satisfying invariant 1
// (type==NEW <=> queue==NEW, ivl==0, factor==0, due==note_id).
func NewCard(id, noteID int64, note *Note, crt int64) *Card {
	return &Card{
		ID:     id,
		NoteID: noteID,
		Note:   note,
		CRT:    crt,
		Type:   CardTypeNew,
		Queue:  QueueNew,
		Due:    noteID,
	}
}

// isRelearningEligible reports whether the card's type puts it in the
// lapse-steps track ({REVIEW, RELEARNING}) rather than the new-card-steps
// track, per spec section 4.11's lrn_conf membership test.
func (c *Card) isRelearningEligible() bool {
	return c.Type == CardTypeReview || c.Type == CardTypeRelearning
}
