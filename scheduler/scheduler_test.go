package scheduler

import (
	"testing"
	"time"
)

// assertInvariants checks the universal per-card invariants spec section 3/8
// require after every public call.
func assertInvariants(t *testing.T, c *Card, cfg Config) {
	t.Helper()
	if c.Type == CardTypeNew {
		if !(c.Queue == QueueNew && c.Ivl == 0 && c.Factor == 0 && c.Due == c.NoteID) {
			t.Errorf("invariant 1 violated for NEW card: %+v", c)
		}
	}
	if c.Queue == QueueSuspended {
		if c.Lapses < cfg.LeechFails {
			t.Errorf("invariant 2 violated: suspended with lapses=%d < LeechFails=%d", c.Lapses, cfg.LeechFails)
		}
		if c.Note == nil || !c.Note.HasTag("leech") {
			t.Errorf("invariant 2 violated: suspended card's note missing leech tag")
		}
	}
	if c.Queue == QueueLearning && c.Left%1000 < 1 {
		t.Errorf("invariant 5 violated: LEARNING card with left%%1000=%d", c.Left%1000)
	}
	if c.Factor > 0 && c.Factor < 1300 {
		t.Errorf("invariant 6 violated: factor=%d", c.Factor)
	}
}

func newTestDeck(crt int64) (*Deck, *Collection) {
	col := NewCollection(1, "test", crt)
	deck := col.NewDeck(1, "default")
	return deck, col
}

// --- Scenario 1: empty deck ---

func TestScenario1_EmptyDeck(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(0)
	s := NewScheduler(deck, clock, DefaultConfig())

	if _, ok := s.NextCard(); ok {
		t.Fatalf("expected no card from an empty deck")
	}
}

// --- Scenario 2: single new card, Good ---

func TestScenario2_NewCardGood(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(86400)
	note := NewNote(1)
	deck.AddCard(1, 1, note, clock.NowS())

	s := NewScheduler(deck, clock, DefaultConfig())

	card, ok := s.NextCard()
	if !ok {
		t.Fatalf("expected a card")
	}

	if err := s.Answer(card, GradeGood); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if card.Queue != QueueLearning || card.Type != CardTypeLearning {
		t.Fatalf("expected LEARNING/LEARNING, got queue=%v type=%v", card.Queue, card.Type)
	}
	// Good on a fresh 2-step card consumes the first step (1m) and reschedules
	// off the second (10m), leaving 1 step remaining.
	if card.Due != clock.NowS()+600 {
		t.Errorf("expected due ~= now+600, got %d (now=%d)", card.Due, clock.NowS())
	}
	if card.Left%1000 != 1 {
		t.Errorf("expected 1 step remaining, got left=%d", card.Left)
	}
	// now sits exactly at a day boundary, so day_cutoff is a full day away and
	// the single remaining NEW_STEPS entry (10m) fits before it — today_steps == 1.
	if card.Left != 1001 {
		t.Errorf("expected left=1001, got %d", card.Left)
	}
	assertInvariants(t, card, DefaultConfig())
}

// --- Scenario 3: single new card, Easy ---

func TestScenario3_NewCardEasy(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(86400)
	note := NewNote(1)
	deck.AddCard(1, 1, note, clock.NowS())

	s := NewScheduler(deck, clock, DefaultConfig())

	card, ok := s.NextCard()
	if !ok {
		t.Fatalf("expected a card")
	}
	if err := s.Answer(card, GradeEasy); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if card.Queue != QueueReview || card.Type != CardTypeReview {
		t.Fatalf("expected REVIEW/REVIEW, got queue=%v type=%v", card.Queue, card.Type)
	}
	if card.Ivl != 4 {
		t.Errorf("expected ivl=4, got %d", card.Ivl)
	}
	if card.Factor != 2500 {
		t.Errorf("expected factor=2500, got %d", card.Factor)
	}
	if card.Due != s.today+4 {
		t.Errorf("expected due=today+4=%d, got %d", s.today+4, card.Due)
	}
	assertInvariants(t, card, DefaultConfig())
}

// --- Scenario 4: day rollover rescues an almost-due learning card ---

func TestScenario4_DayRollover(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(1000)
	note := NewNote(1)
	card := deck.AddCard(1, 1, note, clock.NowS())
	card.Type = CardTypeLearning
	card.Queue = QueueLearning
	card.Left = 1002
	card.Due = clock.NowS() + 30

	s := NewScheduler(deck, clock, DefaultConfig())

	clock.Advance(48 * time.Hour)
	got, ok := s.NextCard()
	if !ok {
		t.Fatalf("expected the learning card to be rescued across the rollover")
	}
	if got.ID != card.ID {
		t.Fatalf("expected the learning card back, got a different card")
	}
}

// --- Scenario 5: leech ---

func TestScenario5_Leech(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(86400)
	note := NewNote(1)
	card := deck.AddCard(1, 1, note, clock.NowS())
	card.Type = CardTypeReview
	card.Queue = QueueReview
	card.Lapses = 7
	card.Ivl = 20
	card.Factor = 2500
	card.Due = 0

	s := NewScheduler(deck, clock, DefaultConfig())

	if err := s.Answer(card, GradeAgain); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if card.Lapses != 8 {
		t.Errorf("expected lapses=8, got %d", card.Lapses)
	}
	if card.Factor != 2300 {
		t.Errorf("expected factor=2300, got %d", card.Factor)
	}
	if card.Queue != QueueSuspended {
		t.Errorf("expected SUSPENDED, got %v", card.Queue)
	}
	if !note.HasTag("leech") {
		t.Errorf("expected note tagged leech")
	}
	if card.Ivl != 1 {
		t.Errorf("expected ivl=1 via update_rev_ivl_on_fail, got %d", card.Ivl)
	}
	assertInvariants(t, card, DefaultConfig())

	// A subsequent fill must never surface a suspended card.
	if _, ok := s.NextCard(); ok {
		t.Errorf("suspended card must not be returned by next_card")
	}
}

// --- Scenario 6: distribute interleaving ---

func TestScenario6_DistributeInterleaving(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(86400)

	for i := int64(1); i <= 2; i++ {
		note := NewNote(i)
		deck.AddCard(i, i, note, clock.NowS())
	}
	for i := int64(3); i <= 4; i++ {
		note := NewNote(i)
		card := deck.AddCard(i, i, note, clock.NowS())
		card.Type = CardTypeReview
		card.Queue = QueueReview
		card.Ivl = 5
		card.Factor = 2500
		card.Due = 0
	}

	s := NewScheduler(deck, clock, DefaultConfig())
	if s.newCardModulus != 2 {
		t.Fatalf("expected new_card_modulus=2, got %d", s.newCardModulus)
	}

	var gotNewAt = -1
	for i := 0; i < 4; i++ {
		repsBefore := s.sessionReps
		card, ok := s.NextCard()
		if !ok {
			t.Fatalf("expected a card at iteration %d", i)
		}
		if card.Type == CardTypeNew && gotNewAt == -1 {
			gotNewAt = int(repsBefore)
		}
	}
	if gotNewAt != 2 {
		t.Errorf("expected the first new card to surface when session reps==2 (modulus 2), got reps=%d", gotNewAt)
	}
}

// --- Boundary tests from section 8 ---

func TestLeftToday_Boundary(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(0)
	s := NewScheduler(deck, clock, DefaultConfig())
	s.dayCutoff = 100000
	clock.Set(s.dayCutoff - 90)

	got := s.leftToday([]int{1, 10}, 2)
	if got != 1 {
		t.Errorf("expected left_today=1, got %d", got)
	}
}

func TestDelayForRepeatingGrade_Boundary(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(86400)
	cfg := DefaultConfig()
	cfg.NewSteps = []int{1, 10, 20}
	s := NewScheduler(deck, clock, cfg)

	note := NewNote(1)
	card := deck.AddCard(1, 1, note, clock.NowS())
	card.Type = CardTypeLearning
	card.Queue = QueueLearning
	card.Left = 1002

	if err := s.Answer(card, GradeHard); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if card.Due != clock.NowS()+900 {
		t.Errorf("expected due = now+900, got %d", card.Due-clock.NowS())
	}
}

func TestNewCardModulus_Boundary(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(86400)

	for i := int64(1); i <= 10; i++ {
		note := NewNote(i)
		deck.AddCard(i, i, note, clock.NowS())
	}
	for i := int64(100); i < 150; i++ {
		note := NewNote(i)
		card := deck.AddCard(i, i, note, clock.NowS())
		card.Type = CardTypeReview
		card.Queue = QueueReview
		card.Ivl = 5
		card.Factor = 2500
		card.Due = 0
	}

	s := NewScheduler(deck, clock, DefaultConfig())
	if s.newCardModulus != 6 {
		t.Errorf("expected modulus=max(2,6)=6, got %d", s.newCardModulus)
	}
}

// --- Other testable properties ---

func TestGoodTwiceGraduates(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(86400)
	note := NewNote(1)
	deck.AddCard(1, 1, note, clock.NowS())

	s := NewScheduler(deck, clock, DefaultConfig())

	card, _ := s.NextCard()
	if err := s.Answer(card, GradeGood); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if card.Left%1000 != 1 {
		t.Errorf("expected 1 step remaining after first Good, got left=%d", card.Left)
	}

	if err := s.Answer(card, GradeGood); err != nil {
		t.Fatalf("second answer: %v", err)
	}
	if card.Type != CardTypeReview || card.Queue != QueueReview {
		t.Fatalf("expected graduation to REVIEW, got type=%v queue=%v", card.Type, card.Queue)
	}
	if card.Ivl != 1 || card.Factor != 2500 {
		t.Errorf("expected ivl=1 factor=2500, got ivl=%d factor=%d", card.Ivl, card.Factor)
	}
	if card.Due != s.today+1 {
		t.Errorf("expected due=today+1, got %d", card.Due)
	}
}

func TestInvalidGrade(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(86400)
	note := NewNote(1)
	card := deck.AddCard(1, 1, note, clock.NowS())

	s := NewScheduler(deck, clock, DefaultConfig())
	err := s.Answer(card, Grade(0))
	if err == nil {
		t.Fatalf("expected ErrInvalidGrade")
	}
	if card.Queue != QueueNew {
		t.Errorf("card must be unchanged on invalid grade, got queue=%v", card.Queue)
	}
}

func TestUnexpectedQueue(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(86400)
	note := NewNote(1)
	card := deck.AddCard(1, 1, note, clock.NowS())
	card.Queue = QueueSuspended

	s := NewScheduler(deck, clock, DefaultConfig())
	if err := s.Answer(card, GradeGood); err == nil {
		t.Fatalf("expected ErrUnexpectedQueue")
	}
}

func TestReviewFormulaUnspecified(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(86400)
	note := NewNote(1)
	card := deck.AddCard(1, 1, note, clock.NowS())
	card.Type = CardTypeReview
	card.Queue = QueueReview
	card.Ivl = 10
	card.Factor = 2500

	s := NewScheduler(deck, clock, DefaultConfig())
	err := s.Answer(card, GradeGood)
	if err != ErrReviewFormulaUnspecified {
		t.Fatalf("expected ErrReviewFormulaUnspecified, got %v", err)
	}
	if card.Ivl != 10 || card.Factor != 2500 {
		t.Errorf("card must be untouched, got ivl=%d factor=%d", card.Ivl, card.Factor)
	}
}

func TestSessionRepsSurviveReset(t *testing.T) {
	deck, _ := newTestDeck(0)
	clock := NewManualClock(86400)
	note := NewNote(1)
	deck.AddCard(1, 1, note, clock.NowS())

	s := NewScheduler(deck, clock, DefaultConfig())
	s.NextCard()
	if s.sessionReps == 0 {
		t.Fatalf("expected sessionReps to have advanced")
	}
	before := s.sessionReps
	s.Reset()
	if s.sessionReps != before {
		t.Errorf("Reset must not clear session reps (spec section 9, open question resolved this way), got %d want %d", s.sessionReps, before)
	}
}

func TestDetachedDeckClampsToday(t *testing.T) {
	deck := &Deck{ID: 1, Name: "detached"}
	clock := NewManualClock(999999)
	s := NewScheduler(deck, clock, DefaultConfig())
	if s.today != 0 {
		t.Errorf("expected today clamped to 0 for a detached deck, got %d", s.today)
	}
}
