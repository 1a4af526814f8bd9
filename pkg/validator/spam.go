package validator

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

const (
	spamShardCount       = 16
	defaultSpamWindow    = 2 * time.Minute
	defaultSpamThreshold = 0.9
	recentPerCustomer    = 5
)

type recentMessage struct {
	normalized string
	seenAt     time.Time
}

type spamShard struct {
	mu      sync.Mutex
	recents map[string][]recentMessage
}

// spamTracker remembers the last few normalized messages per customer and
// flags near-duplicates inside a short window. Sharded like the rate limiter
// so customers do not contend on one lock.
type spamTracker struct {
	shards    [spamShardCount]*spamShard
	window    time.Duration
	threshold float64
	now       func() time.Time
}

func newSpamTracker(window time.Duration, threshold float64) *spamTracker {
	if window <= 0 {
		window = defaultSpamWindow
	}
	if threshold <= 0 || threshold > 1 {
		threshold = defaultSpamThreshold
	}
	t := &spamTracker{window: window, threshold: threshold, now: time.Now}
	for i := range t.shards {
		t.shards[i] = &spamShard{recents: make(map[string][]recentMessage)}
	}
	return t
}

// Observe records the message and reports whether it closely repeats a
// recent message from the same customer.
func (t *spamTracker) Observe(customerID, text string) bool {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	now := t.now()
	sh := t.shardFor(customerID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	kept := sh.recents[customerID][:0]
	duplicate := false
	for _, msg := range sh.recents[customerID] {
		if now.Sub(msg.seenAt) > t.window {
			continue
		}
		kept = append(kept, msg)
		if similarity(normalized, msg.normalized) >= t.threshold {
			duplicate = true
		}
	}
	kept = append(kept, recentMessage{normalized: normalized, seenAt: now})
	if len(kept) > recentPerCustomer {
		kept = kept[len(kept)-recentPerCustomer:]
	}
	sh.recents[customerID] = kept
	return duplicate
}

func (t *spamTracker) shardFor(key string) *spamShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return t.shards[h.Sum32()%spamShardCount]
}

// similarity is a token-set Jaccard index, cheap enough to run on every
// input message.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	setA := tokenSet(a)
	setB := tokenSet(b)
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}
