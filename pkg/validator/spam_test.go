package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpamTracker_ExactDuplicate(t *testing.T) {
	tracker := newSpamTracker(2*time.Minute, 0.9)

	assert.False(t, tracker.Observe("cust-1", "where is my order"))
	assert.True(t, tracker.Observe("cust-1", "where is my order"))
}

func TestSpamTracker_NormalizesWhitespaceAndCase(t *testing.T) {
	tracker := newSpamTracker(2*time.Minute, 0.9)

	assert.False(t, tracker.Observe("cust-1", "Where is my order"))
	assert.True(t, tracker.Observe("cust-1", "  where   IS my ORDER  "))
}

func TestSpamTracker_DifferentMessagesPass(t *testing.T) {
	tracker := newSpamTracker(2*time.Minute, 0.9)

	assert.False(t, tracker.Observe("cust-1", "where is my order"))
	assert.False(t, tracker.Observe("cust-1", "I want to change my delivery address"))
	assert.False(t, tracker.Observe("cust-1", "can you cancel the second item"))
}

func TestSpamTracker_CustomersAreIsolated(t *testing.T) {
	tracker := newSpamTracker(2*time.Minute, 0.9)

	assert.False(t, tracker.Observe("cust-1", "where is my order"))
	assert.False(t, tracker.Observe("cust-2", "where is my order"))
}

func TestSpamTracker_WindowExpiry(t *testing.T) {
	now := time.Now()
	tracker := newSpamTracker(2*time.Minute, 0.9)
	tracker.now = func() time.Time { return now }

	assert.False(t, tracker.Observe("cust-1", "where is my order"))

	now = now.Add(3 * time.Minute)
	assert.False(t, tracker.Observe("cust-1", "where is my order"))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "where is my order", b: "where is my order", want: 1},
		{name: "disjoint", a: "hello there", b: "refund now", want: 0},
		{name: "empty", a: "", b: "anything", want: 0},
		{name: "half overlap", a: "a b", b: "a c", want: 1.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, similarity(tt.a, tt.b), 1e-9)
		})
	}
}
