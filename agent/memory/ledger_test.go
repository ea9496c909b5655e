package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_BoundedLogs(t *testing.T) {
	t.Parallel()

	l := NewLedger(LedgerConfig{ConversationLogSize: 2, PreferenceLogSize: 2, ExperienceLogSize: 2}, nil)
	for i := 0; i < 3; i++ {
		l.RecordConversation("a1", ConversationSnapshot{SessionID: "s", Reply: fmt.Sprint(i)})
		l.RecordPreference("a1", "tone", fmt.Sprint(i))
		l.RecordExperience("a1", ExperienceEvent{Kind: "response", Success: i != 1})
	}

	convs := l.Conversations("a1")
	require.Len(t, convs, 2)
	assert.Equal(t, "1", convs[0].Reply)
	assert.Equal(t, "2", convs[1].Reply)
	assert.False(t, convs[0].Timestamp.IsZero())

	prefs := l.Preferences("a1")
	require.Len(t, prefs, 2)
	assert.Equal(t, "2", prefs[1].Value)

	stats := l.Stats("a1")
	assert.Equal(t, LedgerStats{Conversations: 2, Preferences: 2, Experiences: 2, Successes: 1}, stats)
}

func TestLedger_KnowledgeCreatedOnDemand(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := NewLedger(LedgerConfig{KnowledgePerCategory: 1, Now: func() time.Time { return fixed }}, nil)

	ks := l.Knowledge("a1")
	require.NotNil(t, ks)
	assert.Same(t, ks, l.Knowledge("a1"))

	ks.Add("conversation", "first")
	ks.Add("conversation", "second")
	assert.Equal(t, 1, l.Stats("a1").Knowledge)
	assert.Equal(t, fixed, ks.Entries("conversation")[0].Timestamp)

	assert.True(t, l.Forget("a1"))
	assert.False(t, l.Forget("a1"))
	assert.Nil(t, l.Conversations("a1"))
	assert.Equal(t, LedgerStats{}, l.Stats("a1"))
}

func TestLedger_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	l := NewLedger(DefaultLedgerConfig(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("agent-%d", i%2)
			for j := 0; j < 20; j++ {
				l.RecordExperience(id, ExperienceEvent{Kind: "response", Success: true})
				l.Knowledge(id).Add("c", "x")
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 80, l.Stats("agent-0").Experiences)
	assert.Equal(t, 50, l.Stats("agent-0").Knowledge)
}

func TestLedger_LookupDoesNotCreate(t *testing.T) {
	t.Parallel()

	l := NewLedger(DefaultLedgerConfig(), nil)
	_, ok := l.Lookup("a1")
	assert.False(t, ok)
	assert.Zero(t, l.Len())
	assert.False(t, l.Forget("a1"))

	ks := l.Knowledge("a1")
	got, ok := l.Lookup("a1")
	require.True(t, ok)
	assert.Same(t, ks, got)
	assert.Equal(t, 1, l.Len())

	assert.True(t, l.Forget("a1"))
	_, ok = l.Lookup("a1")
	assert.False(t, ok)
}
