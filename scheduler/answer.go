package scheduler

// lrnConf returns the learning-step table that applies to card: lapse
// steps for a card that has already graduated once ({REVIEW, RELEARNING}),
// new-card steps otherwise (spec section 4.11).
func (s *Scheduler) lrnConf(card *Card) []int {
	if card.isRelearningEligible() {
		return s.cfg.LapseSteps
	}
	return s.cfg.NewSteps
}

// answerNew handles a NEW card's first answer: it enters the learning
// track, then falls through to the same handling as any other learning
// card (spec section 4.8).
func (s *Scheduler) answerNew(card *Card, grade Grade) error {
	card.Queue = QueueLearning
	card.Type = CardTypeLearning
	card.Left = s.startingLeft(card)
	return s.answerLearning(card, grade)
}

// startingLeft computes the initial Left encoding for a card entering (or
// re-entering) its learning steps.
func (s *Scheduler) startingLeft(card *Card) int64 {
	return s.startingLeftForConf(s.lrnConf(card))
}

func (s *Scheduler) startingLeftForConf(conf []int) int64 {
	total := int64(len(conf))
	todaySteps := s.leftToday(conf, total)
	return todaySteps*1000 + total
}

// leftToday walks the last `remaining` entries of delays, accumulating each
// onto now, and counts how many of those accumulations land at or before
// today's day cutoff — i.e. how many of the remaining steps can still be
// shown today. Always at least 1 (spec section 4.8).
func (s *Scheduler) leftToday(delays []int, remaining int64) int64 {
	start := len(delays) - int(remaining)
	if start < 0 {
		start = 0
	}
	now := s.clock.NowS()
	acc := now
	var count int64
	for _, m := range delays[start:] {
		acc += int64(m) * 60
		if acc <= s.dayCutoff {
			count++
		}
	}
	if count < 1 {
		count = 1
	}
	return count
}

// delayForGrade returns the delay, in seconds, for the learning step
// implied by left's packed steps-remaining count (spec section 4.9). Valid
// when left came from startingLeft/startingLeftForConf, i.e. steps
// remaining is in [1, len(conf)].
func (s *Scheduler) delayForGrade(conf []int, left int64) int64 {
	stepsRemaining := int(left % 1000)
	idx := len(conf) - stepsRemaining
	if idx < 0 {
		idx = 0
	}
	if idx >= len(conf) {
		idx = len(conf) - 1
	}
	return int64(conf[idx]) * 60
}

// rescheduleLrnCard sets card due `delay` seconds from now (or the delay
// implied by its current Left, if delay is nil) and keeps it in the
// learning queue.
func (s *Scheduler) rescheduleLrnCard(card *Card, conf []int, delay *int64) {
	d := int64(0)
	if delay == nil {
		d = s.delayForGrade(conf, card.Left)
	} else {
		d = *delay
	}
	card.Due = s.clock.NowS() + d
	card.Queue = QueueLearning
}

// moveToFirstStep restarts a card's learning steps from scratch. If the
// card is mid-relearning, this is also where the deferred ivl reduction
// from the original lapse (spec section 9) actually lands.
func (s *Scheduler) moveToFirstStep(card *Card, conf []int) {
	card.Left = s.startingLeftForConf(conf)
	if card.Type == CardTypeRelearning {
		s.updateRevIvlOnFail(card)
	}
	s.rescheduleLrnCard(card, conf, nil)
}

// answerLearning handles an answer to a card currently in the learning
// queue, dispatching on grade (spec section 4.9).
func (s *Scheduler) answerLearning(card *Card, grade Grade) error {
	conf := s.lrnConf(card)
	switch grade {
	case GradeEasy:
		s.rescheduleAsRev(card, conf, true)
	case GradeGood:
		stepsLeft := card.Left % 1000
		if stepsLeft-1 <= 0 {
			s.rescheduleAsRev(card, conf, false)
		} else {
			newTotal := stepsLeft - 1
			card.Left = s.leftToday(conf, newTotal)*1000 + newTotal
			s.rescheduleLrnCard(card, conf, nil)
		}
	case GradeHard:
		d1 := s.delayForGrade(conf, card.Left)
		next := (card.Left - 1) % 1000
		d2 := d1
		if next != 0 {
			d2 = s.delayForGrade(conf, card.Left-1)
		}
		applied := (d1 + maxInt64(d1, d2)) / 2
		s.rescheduleLrnCard(card, conf, &applied)
	case GradeAgain:
		s.moveToFirstStep(card, conf)
	}
	return nil
}

// answerReview handles an answer to a card currently in the review queue
// (spec section 4.10). Again triggers the lapse path; Hard/Good/Easy are
// left unimplemented (see ErrReviewFormulaUnspecified).
func (s *Scheduler) answerReview(card *Card, grade Grade) error {
	if grade == GradeAgain {
		s.rescheduleLapse(card)
		return nil
	}
	return ErrReviewFormulaUnspecified
}

// rescheduleLapse is the Again handler for a REVIEW card.
func (s *Scheduler) rescheduleLapse(card *Card) {
	card.Lapses++
	card.Factor = maxInt64(1300, card.Factor-200)
	suspended := s.checkLeech(card)
	if !suspended {
		// card.Type stays REVIEW through this call so moveToFirstStep's
		// relearning check is false here — the ivl reduction is deferred to
		// the next Again taken while the card is already mid-relearning.
		s.moveToFirstStep(card, s.cfg.LapseSteps)
		card.Type = CardTypeRelearning
	} else {
		s.updateRevIvlOnFail(card)
	}
}

// checkLeech tags and suspends card once it has lapsed LeechFails times.
func (s *Scheduler) checkLeech(card *Card) bool {
	if card.Lapses >= s.cfg.LeechFails {
		card.Note.AddTag("leech")
		card.Queue = QueueSuspended
		return true
	}
	return false
}

// updateRevIvlOnFail applies the lapse interval reduction: Ivl becomes
// max(1, LapseMinIvl, floor(Ivl*LapseMult)).
func (s *Scheduler) updateRevIvlOnFail(card *Card) {
	card.Ivl = s.lapseIvl(card)
}

func (s *Scheduler) lapseIvl(card *Card) int64 {
	v := int64(float64(card.Ivl) * s.cfg.LapseMult)
	if v < s.cfg.LapseMinIvl {
		v = s.cfg.LapseMinIvl
	}
	if v < 1 {
		v = 1
	}
	return v
}

// rescheduleAsRev graduates a card into the review queue, either for the
// first time (a genuinely new card) or back into review (a lapsed card
// that has finished relearning) — spec section 4.11.
func (s *Scheduler) rescheduleAsRev(card *Card, conf []int, early bool) {
	if card.isRelearningEligible() {
		s.rescheduleGraduatingLapse(card)
		return
	}
	s.rescheduleNewGraduation(card, early)
}

func (s *Scheduler) rescheduleGraduatingLapse(card *Card) {
	card.Due = s.today + card.Ivl
	card.Type = CardTypeReview
	card.Queue = QueueReview
}

func (s *Scheduler) rescheduleNewGraduation(card *Card, early bool) {
	card.Ivl = s.graduatingIvl(card, early)
	card.Due = s.today + card.Ivl
	card.Factor = s.cfg.InitialFactor
	card.Type = CardTypeReview
	card.Queue = QueueReview
}

func (s *Scheduler) graduatingIvl(card *Card, early bool) int64 {
	if card.isRelearningEligible() {
		return card.Ivl
	}
	if !early {
		return s.cfg.GraduatingIvl
	}
	return s.cfg.EasyIvl
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
