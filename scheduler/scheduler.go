// Package scheduler implements the card selection and answer state machine:
// which card to show next, and when to show it again, for a single deck.
// It owns no persistence and no transport; it consumes a Deck (a Card
// sequence and a Collection back-pointer for day-zero anchoring) and a
// Clock, and exposes exactly NextCard, Answer, Reset, and
// UpdateLearnAheadCutoff.
package scheduler

import "time"

// Scheduler is a single long-lived object per deck. It holds a non-owning
// reference to its Deck and mutates Cards in place; it is not safe for
// concurrent use from multiple goroutines.
type Scheduler struct {
	deck  *Deck
	clock Clock
	cfg   Config

	today     int64
	dayCutoff int64
	lrnCutoff int64

	sessionReps    int64
	newCardModulus int64

	queues queueManager
}

// NewScheduler builds a Scheduler for deck, driven by clock, with cfg
// controlling its tunables. It performs an initial Reset so today/
// dayCutoff/lrnCutoff start consistent with the clock.
func NewScheduler(deck *Deck, clock Clock, cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &Scheduler{deck: deck, clock: clock, cfg: cfg}
	s.Reset()
	deck.Scheduler = s
	return s
}

// Reset recomputes the day/cutoff state and clears all three physical
// queues. Queue state is never persisted; it is always rebuilt lazily,
// which is exactly what Reset puts the scheduler back to.
func (s *Scheduler) Reset() {
	s.updateCutoff()
	s.resetLrn()
	s.resetRev()
	s.resetNew()
}

func (s *Scheduler) updateCutoff() {
	now := s.clock.NowS()
	if crt, attached := s.deck.creationCRT(); attached {
		diff := now - crt
		if diff < 0 {
			diff = 0
		}
		s.today = diff / 86400
	} else {
		s.today = 0
	}
	s.dayCutoff = nextUTCMidnightAfter(now, s.cfg.Location)
}

// nextUTCMidnightAfter returns the epoch-second of the next midnight in loc
// strictly after now. A now sitting exactly on midnight still advances a
// full day — the model forbids a zero-length day.
func nextUTCMidnightAfter(now int64, loc *time.Location) int64 {
	t := time.Unix(now, 0).In(loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, 1).Unix()
}

func (s *Scheduler) resetLrn() {
	s.UpdateLearnAheadCutoff(true)
	s.queues.resetLrn()
}

func (s *Scheduler) resetRev() {
	s.queues.resetRev()
}

// resetNew clears the new queue, then recomputes the interleaving modulus.
// Rev must already have been cleared (resetRev, called before this by
// Reset) so the ratio computation below re-queries fresh due cards for the
// newly-updated today, rather than reading stale pre-reset counts.
func (s *Scheduler) resetNew() {
	s.queues.resetNew()
	s.updateNewCardModulus()
}

// UpdateLearnAheadCutoff recomputes the learn-ahead window. The candidate
// cutoff is adopted if force is set, or if it has drifted by more than 60s
// from the current one (spec section 4.3). Returns whether it was adopted;
// exposed for test harnesses per spec section 6.
func (s *Scheduler) UpdateLearnAheadCutoff(force bool) bool {
	candidate := s.clock.NowS() + s.cfg.CollapseTime
	if force || candidate-s.lrnCutoff > 60 {
		s.lrnCutoff = candidate
		return true
	}
	return false
}

// updateNewCardModulus computes how often a new card should be interleaved
// with reviews (spec section 4.5). It fills the new and review queues
// first — both fills are idempotent no-ops once populated — because the
// ratio is only meaningful against their actual sizes.
func (s *Scheduler) updateNewCardModulus() {
	s.queues.fillNew(s.deck.Cards, s.cfg)
	s.queues.fillRev(s.deck.Cards, s.today, s.cfg)

	if s.cfg.NewSpread == SpreadDistribute && len(s.queues.newQueue) > 0 {
		ratio := (len(s.queues.newQueue) + len(s.queues.revQueue)) / len(s.queues.newQueue)
		if len(s.queues.revQueue) > 0 && ratio < 2 {
			ratio = 2
		}
		s.newCardModulus = int64(ratio)
	} else {
		s.newCardModulus = 0
	}
}

func (s *Scheduler) timeForNewCard() bool {
	if !s.queues.fillNew(s.deck.Cards, s.cfg) {
		return false
	}
	switch s.cfg.NewSpread {
	case SpreadLast:
		return false
	case SpreadFirst:
		return true
	default:
		return s.sessionReps > 0 && s.newCardModulus != 0 && s.sessionReps%s.newCardModulus == 0
	}
}

func (s *Scheduler) getLrnCard() (*Card, bool) {
	if !s.queues.fillLrn(s.deck.Cards, s.clock.NowS(), s.cfg) {
		return nil, false
	}
	return popTail(&s.queues.lrnQueue)
}

func (s *Scheduler) getNewCard() (*Card, bool) {
	if !s.queues.fillNew(s.deck.Cards, s.cfg) {
		return nil, false
	}
	return popTail(&s.queues.newQueue)
}

func (s *Scheduler) getRevCard() (*Card, bool) {
	if !s.queues.fillRev(s.deck.Cards, s.today, s.cfg) {
		return nil, false
	}
	return popTail(&s.queues.revQueue)
}

func (s *Scheduler) checkDay() {
	if s.clock.NowS() > s.dayCutoff {
		s.Reset()
	}
}

// NextCard selects the next card to present, or (nil, false) if nothing is
// due. Selection order (spec section 4.6): a due learning card first, then
// a new card if it's that card's turn in the interleave, then a due review
// card, then any new card as a catch-all, then a second learn-ahead rescue
// attempt on the learning queue.
func (s *Scheduler) NextCard() (*Card, bool) {
	s.checkDay()
	card, ok := s.selectCard()
	// Physical queues are not touched by Answer, so a card suspended after
	// its queue was filled can still sit in it; skip such cards.
	for ok && card.Queue == QueueSuspended {
		card, ok = s.selectCard()
	}
	if ok {
		s.sessionReps++
	}
	return card, ok
}

func (s *Scheduler) selectCard() (*Card, bool) {
	if c, ok := s.getLrnCard(); ok {
		return c, true
	}
	if s.timeForNewCard() {
		if c, ok := s.getNewCard(); ok {
			return c, true
		}
	}
	if c, ok := s.getRevCard(); ok {
		return c, true
	}
	if c, ok := s.getNewCard(); ok {
		return c, true
	}
	if c, ok := s.getLrnCard(); ok {
		return c, true
	}
	return nil, false
}

// Answer records a grade for card and advances its scheduling state. It
// does not touch the physical queues — those are rebuilt lazily on the
// next fill, picking up card's new Queue tag.
func (s *Scheduler) Answer(card *Card, grade Grade) error {
	if !grade.valid() {
		return wrapGrade(grade)
	}
	card.Reps++
	switch card.Queue {
	case QueueNew:
		return s.answerNew(card, grade)
	case QueueLearning:
		return s.answerLearning(card, grade)
	case QueueReview:
		return s.answerReview(card, grade)
	default:
		return wrapQueue(card.Queue)
	}
}
