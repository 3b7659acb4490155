package poll_test

import (
	"testing"

	"codeberg.org/halvor/sunmon/internal/poll"
	"github.com/stretchr/testify/assert"
)

func TestTrackerStartsHealthy(t *testing.T) {
	tracker := poll.NewTracker()

	assert.Equal(t, 0, tracker.ConsecutiveFailures())
	assert.Equal(t, poll.StateHealthy, tracker.State())
	assert.True(t, tracker.Available())
}

func TestTrackerStateTransitions(t *testing.T) {
	tests := []struct {
		name      string
		outcomes  []bool
		failures  int
		state     poll.State
		available bool
	}{
		{"one failure", []bool{false}, 1, poll.StateDegraded, true},
		{"two failures", []bool{false, false}, 2, poll.StateDegraded, true},
		{"three failures", []bool{false, false, false}, 3, poll.StateOffline, false},
		{"many failures", []bool{false, false, false, false, false}, 5, poll.StateOffline, false},
		{"success resets", []bool{false, false, true}, 0, poll.StateHealthy, true},
		{"failure after recovery", []bool{false, false, true, false}, 1, poll.StateDegraded, true},
		{"success only", []bool{true, true, true}, 0, poll.StateHealthy, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := poll.NewTracker()
			for _, success := range tt.outcomes {
				tracker.Observe(success)
			}

			assert.Equal(t, tt.failures, tracker.ConsecutiveFailures())
			assert.Equal(t, tt.state, tracker.State())
			assert.Equal(t, tt.available, tracker.Available())
		})
	}
}

// The failure count must always equal the length of the trailing run of
// failures since the last success, for any outcome sequence.
func TestTrackerCountsTrailingFailureRun(t *testing.T) {
	outcomes := []bool{false, true, false, false, true, false, false, false, false, true, false}

	tracker := poll.NewTracker()
	trailing := 0
	for _, success := range outcomes {
		tracker.Observe(success)
		if success {
			trailing = 0
		} else {
			trailing++
		}

		assert.Equal(t, trailing, tracker.ConsecutiveFailures())
		assert.Equal(t, trailing < 3, tracker.Available())
	}
}

func TestTrackerRecoversInstantly(t *testing.T) {
	tracker := poll.NewTracker()
	for i := 0; i < 200; i++ {
		tracker.Observe(false)
	}
	assert.Equal(t, poll.StateOffline, tracker.State())
	assert.False(t, tracker.Available())

	tracker.Observe(true)

	assert.Equal(t, 0, tracker.ConsecutiveFailures())
	assert.Equal(t, poll.StateHealthy, tracker.State())
	assert.True(t, tracker.Available())
}
