package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompose_EmptyBlocks(t *testing.T) {
	t.Parallel()

	got := Compose(Input{Instruction: "Be kind.", Question: " What is Go? "})
	want := "[System Instruction]\nYou are AI assistant with the following personality style:\nBe kind.\n\n" +
		"[Conversation History]\nNo significant previous interactions.\n\n" +
		"[Recent Channel Messages]\nNo recent relevant messages.\n\n" +
		"[File Attachment Summary]\nNo file uploaded.\n\n" +
		"[User Question]\nWhat is Go?\n\n" +
		"[Expected Behavior]\nRespond clearly and thoroughly, considering all the provided context and maintaining the defined personality style."
	assert.Equal(t, want, got)
}

func TestCompose_FilledBlocks(t *testing.T) {
	t.Parallel()

	got := Compose(Input{
		Instruction: "Talk like a pirate.",
		History:     "User: hello there\nBot: ahoy matey\n\n",
		Recent:      "ana: anyone up?",
		FileContext: "[TXT: a.txt]\nhello",
	})

	assert.Contains(t, got, "[Conversation History]\nUser: hello there\nBot: ahoy matey\n\n[Recent")
	assert.Contains(t, got, "[Recent Channel Messages]\nana: anyone up?\n\n")
	assert.Contains(t, got, "[File Attachment Summary]\n[TXT: a.txt]\nhello\n\n")
	assert.Contains(t, got, "[User Question]\n"+DefaultQuestion+"\n\n")
	assert.False(t, strings.Contains(got, "No file uploaded."))
}

func TestCompose_Deterministic(t *testing.T) {
	t.Parallel()
	in := Input{Instruction: "x", History: "h", Recent: "r", FileContext: "f", Question: "q"}
	assert.Equal(t, Compose(in), Compose(in))
}
