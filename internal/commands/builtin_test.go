package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"swampbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMembers map[string]string

func (f fakeMembers) ChatMembers(ctx context.Context, chatID string) map[string]string {
	return f
}

type fakeLLM struct {
	out  string
	err  error
	user string
}

func (f *fakeLLM) GenerateText(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	f.user = user
	return f.out, f.err
}

func newBuiltinRouter(deps Deps) *Router {
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(1, 2))
	}
	return NewRouter("!", zap.NewNop(), Builtin(deps)...)
}

func run(t *testing.T, r *Router, req *Request) *replies {
	t.Helper()
	var out replies
	req.Reply = out.reply
	require.NoError(t, r.Handle(context.Background(), req))
	require.NotEmpty(t, out.texts)
	return &out
}

func TestPing(t *testing.T) {
	out := run(t, newBuiltinRouter(Deps{}), &Request{Text: "ping"})
	assert.Equal(t, "pong 🏓", out.last())
}

func TestHello_GreetsAuthorWithMention(t *testing.T) {
	r := newBuiltinRouter(Deps{})

	for _, text := range []string{"hello", "hey there", "yo!", "howdy"} {
		out := run(t, r, &Request{Text: text, CreatorID: "77", CreatorName: "Ann"})
		assert.Contains(t, out.last(), "![:Person](77)", text)
		assert.Equal(t, []models.Mention{{ID: "77", Type: "Person"}}, out.mentions[0])
	}

	out := run(t, r, &Request{Text: "hi", CreatorName: "Ann"})
	assert.Contains(t, out.last(), "@Ann")
	assert.Empty(t, out.mentions[0])
}

func TestFlip(t *testing.T) {
	r := newBuiltinRouter(Deps{})

	out := run(t, r, &Request{Text: "flip"})
	assert.True(t, out.last() == "🪙 It's **heads**!" || out.last() == "🪙 It's **tails**!", out.last())

	out = run(t, r, &Request{Text: "flip heads", CreatorID: "5"})
	text := out.last()
	if strings.Contains(text, "**heads**") {
		assert.Contains(t, text, "![:Person](5) called it.")
	} else {
		assert.Contains(t, text, "you called heads")
	}
	assert.Equal(t, []models.Mention{{ID: "5", Type: "Person"}}, out.mentions[0])
}

func TestPick_ExcludesBotAndCaps(t *testing.T) {
	members := fakeMembers{"bot": "SWAMPbot", "1": "Ann", "2": "Bo"}
	r := newBuiltinRouter(Deps{BotID: "bot", Members: members})

	out := run(t, r, &Request{Text: "pick 5", ChatID: "c1"})
	text := out.last()
	assert.True(t, strings.HasPrefix(text, "🎟️ Lottery time! Picking 2 winners (only 2 available):\n"), text)
	assert.Contains(t, text, "![:Person](1)")
	assert.Contains(t, text, "![:Person](2)")
	assert.NotContains(t, text, "![:Person](bot)")
	assert.True(t, strings.HasSuffix(text, "Yippee woohoo to the winners!"))
	assert.Len(t, out.mentions[0], 2)

	out = run(t, r, &Request{Text: "pick 1", ChatID: "c1"})
	assert.Contains(t, out.last(), "Picking 1 winner:\n1. ")
	assert.Len(t, out.mentions[0], 1)
}

func TestPick_BadInput(t *testing.T) {
	r := newBuiltinRouter(Deps{Members: fakeMembers{"bot": "SWAMPbot"}, BotID: "bot"})

	assert.Equal(t, `Usage: pick {number}, e.g. "pick 3"`, run(t, r, &Request{Text: "pick some", ChatID: "c1"}).last())
	assert.Equal(t, "Please provide a positive number of winners to pick.", run(t, r, &Request{Text: "pick 0", ChatID: "c1"}).last())
	assert.Equal(t, "I couldn't find anyone to pick from in this chat.", run(t, r, &Request{Text: "pick 2", ChatID: "c1"}).last())
}

func TestRoast_UsesModelAndTargetsMention(t *testing.T) {
	llm := &fakeLLM{out: "  Your PRs need a PR.  "}
	r := newBuiltinRouter(Deps{BotID: "bot", LLM: llm})

	out := run(t, r, &Request{
		Text:      "roast",
		CreatorID: "1",
		Mentions:  []models.Mention{{ID: "bot"}, {ID: "9", Name: "Cy"}},
	})
	assert.Equal(t, "🔥 Your PRs need a PR.", out.last())
	assert.Contains(t, llm.user, "![:Person](9)")
	assert.Equal(t, []models.Mention{{ID: "9", Type: "Person"}}, out.mentions[0])
}

func TestRoast_FallsBackToCannedLine(t *testing.T) {
	r := newBuiltinRouter(Deps{LLM: &fakeLLM{err: errors.New("down")}})

	out := run(t, r, &Request{Text: "roast @bob"})
	line := strings.TrimPrefix(out.last(), "🔥 ")

	found := false
	for _, format := range cannedRoasts {
		if line == fmt.Sprintf(format, "@bob") {
			found = true
		}
	}
	assert.True(t, found, line)
	assert.Empty(t, out.mentions[0])
}
