package maps

import (
	"sync"
	"time"
)

// Quota is the process-wide daily cap on distance calls. The counter rolls
// over on the first use of a new calendar day in loc.
type Quota struct {
	mu    sync.Mutex
	limit int64
	used  int64
	day   string
	loc   *time.Location
	now   func() time.Time
}

func NewQuota(limit int64, loc *time.Location) *Quota {
	if loc == nil {
		loc = time.UTC
	}
	return &Quota{limit: limit, loc: loc, now: time.Now}
}

// TryAcquire counts one call. It returns false, without counting, once the
// cap for the day has been reached.
func (q *Quota) TryAcquire() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	if q.used >= q.limit {
		return false
	}
	q.used++
	return true
}

func (q *Quota) Used() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	return q.used
}

func (q *Quota) Limit() int64 {
	return q.limit
}

func (q *Quota) Exhausted() bool {
	return q.Used() >= q.limit
}

// Reset zeroes the counter and returns the count it held.
func (q *Quota) Reset() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	used := q.used
	q.used = 0
	q.day = q.today()
	return used
}

func (q *Quota) rollover() {
	if today := q.today(); today != q.day {
		q.day = today
		q.used = 0
	}
}

func (q *Quota) today() string {
	return q.now().In(q.loc).Format(time.DateOnly)
}
