package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetContextCreatesConversation(t *testing.T) {
	s := NewStore(24 * time.Hour)

	turns := s.GetContext("c1", 20)
	require.Empty(t, turns)
	require.Equal(t, 1, s.Len())
}

func TestWindowInvariant(t *testing.T) {
	s := NewStore(24 * time.Hour)
	const window = 5

	s.GetContext("c1", window)
	for i := 0; i < 30; i++ {
		s.AppendExchange("c1",
			Turn{Role: RoleUser, Content: fmt.Sprintf("u%d", i)},
			Turn{Role: RoleAssistant, Content: fmt.Sprintf("a%d", i)},
		)
	}

	got := s.GetContext("c1", window)
	require.Len(t, got, window)
	// Most recent turns are returned in order.
	require.Equal(t, "a29", got[window-1].Content)

	// Stored history is bounded to 2×window after GetContext.
	count, _ := s.Summary("c1")
	require.LessOrEqual(t, count, 2*window)
}

func TestTruncationKeepsSystemTurn(t *testing.T) {
	s := NewStore(24 * time.Hour)
	s.GetContext("c1", 3)

	s.conversations["c1"].turns = []Turn{{Role: RoleSystem, Content: "sys"}}
	for i := 0; i < 10; i++ {
		s.AppendExchange("c1",
			Turn{Role: RoleUser, Content: "u"},
			Turn{Role: RoleAssistant, Content: "a"},
		)
	}

	got := s.GetContext("c1", 3)
	require.Len(t, got, 3)
	require.Equal(t, RoleSystem, got[0].Role)
	require.Equal(t, "sys", got[0].Content)
}

func TestAppendExchangeUnknownIDIsNoop(t *testing.T) {
	s := NewStore(24 * time.Hour)

	s.AppendExchange("ghost", UserTurn("hi"), AssistantTurn("hello"))
	require.Equal(t, 0, s.Len())

	count, last := s.Summary("ghost")
	require.Zero(t, count)
	require.Nil(t, last)
}

func TestTTLSweepOnAccess(t *testing.T) {
	s := NewStore(24 * time.Hour)
	s.GetContext("stale", 20)
	s.AppendExchange("stale", UserTurn("hi"), AssistantTurn("hello"))

	// Age the conversation past the TTL, then touch the store via a
	// different conversation: the stale one must be gone afterwards.
	s.conversations["stale"].lastActivity = time.Now().Add(-25 * time.Hour)
	s.GetContext("fresh", 20)

	require.Equal(t, 1, s.Len())
	count, last := s.Summary("stale")
	require.Zero(t, count)
	require.Nil(t, last)
}

func TestClearDeletesImmediately(t *testing.T) {
	s := NewStore(24 * time.Hour)
	s.GetContext("c1", 20)
	s.AppendExchange("c1", UserTurn("hi"), AssistantTurn("hello"))

	s.Clear("c1")

	count, last := s.Summary("c1")
	require.Zero(t, count)
	require.Nil(t, last)
}

func TestSummaryReportsActivity(t *testing.T) {
	s := NewStore(24 * time.Hour)
	s.GetContext("c1", 20)
	s.AppendExchange("c1", UserTurn("hi"), AssistantTurn("hello"))

	count, last := s.Summary("c1")
	require.Equal(t, 2, count)
	require.NotNil(t, last)
	require.WithinDuration(t, time.Now(), *last, time.Minute)
}
