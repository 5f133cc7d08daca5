package scheduler

import (
	"math/rand"
	"sort"
)

// queueManager holds the three bounded, lazily-rebuilt physical queues.
// They are empty after construction or Reset, and are populated on demand
// by the fill* methods. Cards are popped from the tail; fillNew and fillLrn
// sort and then reverse the selection so that the card that should be
// presented first ends up at the tail, since pop is a tail operation, while
// fillRev shuffles its selection instead (spec section 4.4).
type queueManager struct {
	newQueue []*Card
	lrnQueue []*Card
	revQueue []*Card
}

func (q *queueManager) resetNew() { q.newQueue = nil }
func (q *queueManager) resetLrn() { q.lrnQueue = nil }
func (q *queueManager) resetRev() { q.revQueue = nil }

// fillNew selects queue==NEW cards, sorted ascending by id, truncated to
// NewCardsPerDay. Reversed so the lowest id is at the tail (popped first).
func (q *queueManager) fillNew(cards []*Card, cfg Config) bool {
	if len(q.newQueue) > 0 {
		return true
	}
	var selected []*Card
	for _, c := range cards {
		if c.Queue == QueueNew {
			selected = append(selected, c)
		}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
	if len(selected) > cfg.NewCardsPerDay {
		selected = selected[:cfg.NewCardsPerDay]
	}
	reverseCards(selected)
	q.newQueue = selected
	return len(q.newQueue) > 0
}

// fillLrn selects queue==LEARNING cards due within the learn-ahead window,
// sorted ascending by due (earliest first), truncated to ReportLimit, and
// reversed so the earliest-due card is at the tail.
func (q *queueManager) fillLrn(cards []*Card, now int64, cfg Config) bool {
	if len(q.lrnQueue) > 0 {
		return true
	}
	cutoff := now + cfg.CollapseTime
	var selected []*Card
	for _, c := range cards {
		if c.Queue == QueueLearning && c.Due < cutoff {
			selected = append(selected, c)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].Due != selected[j].Due {
			return selected[i].Due < selected[j].Due
		}
		return selected[i].ID < selected[j].ID
	})
	if len(selected) > cfg.ReportLimit {
		selected = selected[:cfg.ReportLimit]
	}
	reverseCards(selected)
	q.lrnQueue = selected
	return len(q.lrnQueue) > 0
}

// fillRev selects queue==REVIEW cards due today or earlier, sorted
// ascending by due, truncated to ReviewCardsPerDay, then shuffled with a
// PRNG seeded by today so the permutation is deterministic across restarts
// for a fixed due-set and day.
func (q *queueManager) fillRev(cards []*Card, today int64, cfg Config) bool {
	if len(q.revQueue) > 0 {
		return true
	}
	var selected []*Card
	for _, c := range cards {
		if c.Queue == QueueReview && c.Due <= today {
			selected = append(selected, c)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].Due != selected[j].Due {
			return selected[i].Due < selected[j].Due
		}
		return selected[i].ID < selected[j].ID
	})
	if len(selected) > cfg.ReviewCardsPerDay {
		selected = selected[:cfg.ReviewCardsPerDay]
	}
	rng := rand.New(rand.NewSource(today))
	rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	q.revQueue = selected
	return len(q.revQueue) > 0
}

func reverseCards(cards []*Card) {
	for i, j := 0, len(cards)-1; i < j; i, j = i+1, j-1 {
		cards[i], cards[j] = cards[j], cards[i]
	}
}

func popTail(q *[]*Card) (*Card, bool) {
	n := len(*q)
	if n == 0 {
		return nil, false
	}
	c := (*q)[n-1]
	*q = (*q)[:n-1]
	return c, true
}
