package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatusPrecedence(t *testing.T) {
	now := time.Now().Unix()
	future := now + 3600
	past := now - 3600

	cases := []struct {
		name      string
		raised    uint64
		target    uint64
		deadline  int64
		cancelled bool
		completed bool
		expected  Status
	}{
		{"target reached before deadline", 100, 100, future, false, false, StatusCompleted},
		{"target overreached", 150, 100, future, false, false, StatusCompleted},
		{"deadline passed under target", 50, 100, past, false, false, StatusFailed},
		{"running under target", 50, 100, future, false, false, StatusActive},
		{"no donations yet", 0, 100, future, false, false, StatusActive},
		{"cancelled overrides completion", 100, 100, future, true, false, StatusCancelled},
		{"cancelled overrides failure", 50, 100, past, true, false, StatusCancelled},
		{"target reached after deadline stays completed", 100, 100, past, false, false, StatusCompleted},
		{"explicit completion sticks under target", 50, 100, past, false, true, StatusCompleted},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := DeriveStatus(c.raised, c.target, c.deadline, now, c.cancelled, c.completed)
			assert.Equal(t, c.expected, s)
		})
	}
}

func TestDeriveStatusIsPure(t *testing.T) {
	now := time.Now().Unix()
	for i := 0; i < 10; i++ {
		assert.Equal(t, StatusActive, DeriveStatus(50, 100, now+3600, now, false, false))
	}
}

func TestDeriveStatusTerminalStatesAreSticky(t *testing.T) {
	created := time.Now().Unix()
	deadline := created + 3600

	completed := DeriveStatus(100, 100, deadline, created, false, false)
	assert.Equal(t, StatusCompleted, completed)

	// Moving the clock far past the deadline does not flip a completed
	// campaign to failed, nor a cancelled one to anything else.
	later := deadline + 1000000
	assert.Equal(t, StatusCompleted, DeriveStatus(100, 100, deadline, later, false, completed == StatusCompleted))
	assert.Equal(t, StatusCancelled, DeriveStatus(100, 100, deadline, later, true, false))
}

func TestDerive(t *testing.T) {
	now := time.Now()
	c := Campaign{
		ID:           1,
		TargetAmount: 100,
		RaisedAmount: 40,
		Deadline:     now.Add(time.Hour).Unix(),
		Status:       StatusActive,
	}
	assert.Equal(t, StatusActive, c.Derive(now))

	c.RaisedAmount = 100
	assert.Equal(t, StatusCompleted, c.Derive(now))

	c.Status = StatusCancelled
	assert.Equal(t, StatusCancelled, c.Derive(now))
}

func TestTypeValid(t *testing.T) {
	assert.True(t, DisasterRelief.Valid())
	assert.True(t, PovertyAlleviation.Valid())
	assert.False(t, Type(7).Valid())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusActive.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
