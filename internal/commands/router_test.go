package commands

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"swampbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type replies struct {
	texts    []string
	mentions [][]models.Mention
}

func (r *replies) reply(ctx context.Context, text string, mentions ...models.Mention) error {
	r.texts = append(r.texts, text)
	r.mentions = append(r.mentions, mentions)
	return nil
}

func (r *replies) last() string {
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

func echoCommand(name string, aliases ...string) Command {
	return Command{
		Name:        name,
		Aliases:     aliases,
		Description: name + " things",
		Run: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, name+":"+req.Text)
		},
	}
}

func TestRouter_LookupByNameAndAlias(t *testing.T) {
	r := NewRouter("!", zap.NewNop(), echoCommand("deploy", "ship"))

	cmd, args := r.Lookup("!SHIP it now")
	require.NotNil(t, cmd)
	assert.Equal(t, "deploy", cmd.Name)
	assert.Equal(t, []string{"it", "now"}, args)

	cmd, _ = r.Lookup("deploy")
	require.NotNil(t, cmd)
	assert.Equal(t, "deploy", cmd.Name)

	cmd, _ = r.Lookup("?")
	require.NotNil(t, cmd)
	assert.Equal(t, "help", cmd.Name)

	cmd, _ = r.Lookup("   ")
	assert.Nil(t, cmd)
}

func TestRouter_MatchersRunBeforeNames(t *testing.T) {
	claimed := echoCommand("weather")
	claimed.Matches = func(text string) bool { return text == "deploy forecast" }

	r := NewRouter("!", zap.NewNop(), echoCommand("deploy"), claimed)
	cmd, _ := r.Lookup("!deploy forecast")
	require.NotNil(t, cmd)
	assert.Equal(t, "weather", cmd.Name)
}

func TestRouter_UnknownAndEmptyReplyWithHelp(t *testing.T) {
	r := NewRouter("", zap.NewNop(), echoCommand("deploy"))

	for _, text := range []string{"", "dance please"} {
		var out replies
		require.NoError(t, r.Handle(context.Background(), &Request{Text: text, Reply: out.reply}))
		require.Len(t, out.texts, 1)
		assert.Equal(t, r.HelpText(), out.last())
	}
}

func TestRouter_HandleStripsPrefix(t *testing.T) {
	r := NewRouter("!", zap.NewNop(), echoCommand("deploy"))

	var out replies
	require.NoError(t, r.Handle(context.Background(), &Request{Text: "  !deploy api", Reply: out.reply}))
	assert.Equal(t, "deploy:deploy api", out.last())
}

func TestRouter_CommandErrorApologizes(t *testing.T) {
	broken := Command{
		Name: "boom",
		Run: func(ctx context.Context, req *Request) error {
			return errors.New("fuse blown")
		},
	}
	r := NewRouter("!", zap.NewNop(), broken)

	var out replies
	require.NoError(t, r.Handle(context.Background(), &Request{Text: "boom", Reply: out.reply}))
	assert.Equal(t, "Whoops, that command hiccuped: fuse blown", out.last())
}

func TestRouter_HelpText(t *testing.T) {
	cmd := echoCommand("deploy", "ship")
	cmd.Usage = "deploy <service>"
	r := NewRouter("!", zap.NewNop(), cmd)

	help := r.HelpText()
	assert.Contains(t, help, "🔍 Here's what I can do:\n")
	assert.Contains(t, help, "• **deploy, ship** — deploy things — `deploy <service>`\n")
	assert.Contains(t, help, "• **help, h, ?** — Show available commands — `help`\n")
	assert.Contains(t, help, "Tip: mention me, then your command (@SWAMPbot [command])")
}

func TestExtractCommandText(t *testing.T) {
	name := regexp.MustCompile(`(?i)@?\bswampbot\b[:,]?`)
	assert.Equal(t, "ping", ExtractCommandText("@SwampBot ping", name))
	assert.Equal(t, "pick 2", ExtractCommandText("swampbot, pick   2", name))
	assert.Equal(t, "swampbots rule", ExtractCommandText("swampbots rule", name))
	assert.Equal(t, "roast @bob", ExtractCommandText(" roast @bob ", nil))
}
