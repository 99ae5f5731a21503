package aggregator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/channels"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/memory"
)

func TestHistorical(t *testing.T) {
	t.Parallel()

	rec := memory.NewRecord()
	rec.Append("200", memory.Turn{User: "What is Go?", Bot: "A language."})
	rec.Append("100", memory.Turn{User: "hi", Bot: "yo"})
	rec.Append("100", memory.Turn{User: "Summarize this", Bot: "It is a report.", FileContext: "Q3 numbers"})

	got := Historical(rec, DefaultOptions())
	want := "User: Summarize this\nBot: It is a report.\n[Related File Content]\nQ3 numbers\n\n" +
		"User: What is Go?\nBot: A language.\n\n"
	assert.Equal(t, want, got)
}

func TestHistorical_KeepsLastTurnsChronologically(t *testing.T) {
	t.Parallel()

	rec := memory.NewRecord()
	for i := 0; i < 15; i++ {
		rec.Append("c", memory.Turn{User: fmt.Sprintf("question %02d", i), Bot: "answer"})
	}
	rec.Append(legacyPersonalityKey, memory.Turn{User: "should not", Bot: "render"})

	got := Historical(rec, Options{HistoryTurns: 3})
	assert.Equal(t, 3, strings.Count(got, "User: "))
	assert.Less(t, strings.Index(got, "question 12"), strings.Index(got, "question 14"))
	assert.NotContains(t, got, "question 11")
	assert.NotContains(t, got, "should not")
}

func TestHistorical_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Historical(nil, Options{}))
	assert.Empty(t, Historical(memory.NewRecord(), Options{}))
}

func TestRecent(t *testing.T) {
	t.Parallel()

	// Most recent first.
	msgs := []channels.Message{
		{Author: "ana", Content: "  latest message here  "},
		{Author: "bot", Content: "I am a bot reply", Bot: true},
		{Author: "bob", Content: "!reply what now"},
		{Author: "bob", Content: "/slash command"},
		{Author: "cy", Content: "ok"},
		{Author: "cy", Content: "the oldest message"},
	}

	got := Recent(msgs, DefaultOptions())
	assert.Equal(t, "cy: the oldest message\nana: latest message here", got)
}

func TestRecent_IndentedCommandIsKept(t *testing.T) {
	t.Parallel()

	msgs := []channels.Message{
		{Author: "bob", Content: "  !reply quoted here"},
		{Author: "bob", Content: "!reply dropped"},
	}
	assert.Equal(t, "bob: !reply quoted here", Recent(msgs, DefaultOptions()))
}

func TestRecent_Limit(t *testing.T) {
	t.Parallel()

	msgs := make([]channels.Message, 0, 30)
	for i := 0; i < 30; i++ {
		msgs = append(msgs, channels.Message{Author: "u", Content: fmt.Sprintf("message %02d", i)})
	}
	got := Recent(msgs, Options{RecentLimit: 20})
	lines := strings.Split(got, "\n")
	assert.Len(t, lines, 20)
	assert.Equal(t, "u: message 19", lines[0])
	assert.Equal(t, "u: message 00", lines[19])
}
