package commands

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"swampbot/internal/models"
)

// MemberSource lists the people in a chat as id -> display name.
type MemberSource interface {
	ChatMembers(ctx context.Context, chatID string) map[string]string
}

// TextGenerator produces free text from a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// Deps are what the built-in commands need from the rest of the bot.
type Deps struct {
	BotID   string
	Members MemberSource
	LLM     TextGenerator
	// Rand drives quips, coin flips and picks. Nil seeds from the clock.
	Rand *rand.Rand
}

var (
	greetingRe = regexp.MustCompile(`(?i)\b(hi|hello|hey|howdy|yo|sup)\b`)
	flipRe     = regexp.MustCompile(`(?i)^flip(?:\s+(heads|tails))?$`)
	pickRe     = regexp.MustCompile(`(?i)^pick\b`)
	pickArgRe  = regexp.MustCompile(`(?i)^\s*pick\s+(\d+)\s*$`)
	roastRe    = regexp.MustCompile(`(?i)^roast\b`)
	atNameRe   = regexp.MustCompile(`@([^\s<>@]+)`)
)

// MentionPerson renders the platform mention markup for a person.
func MentionPerson(id string) string {
	return "![:Person](" + id + ")"
}

// FormatMention mentions by id when known, else by name.
func FormatMention(id, name string) string {
	if id = strings.TrimSpace(id); id != "" {
		return MentionPerson(id)
	}
	if name = strings.TrimSpace(name); name != "" {
		return "@" + name
	}
	return "friend"
}

type toolbox struct {
	deps Deps
	mu   sync.Mutex
	rng  *rand.Rand
}

func (t *toolbox) intN(n int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rng.IntN(n)
}

func (t *toolbox) shuffle(n int, swap func(i, j int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rng.Shuffle(n, swap)
}

// Builtin returns the stock commands. Anchored matchers come before the
// greeting matcher so that "pick 2 hey" still picks.
func Builtin(deps Deps) []Command {
	rng := deps.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	t := &toolbox{deps: deps, rng: rng}

	return []Command{
		{
			Name:        "ping",
			Description: "Check liveness",
			Usage:       "ping",
			Run: func(ctx context.Context, req *Request) error {
				return req.Reply(ctx, "pong 🏓")
			},
		},
		{
			Name:        "flip",
			Description: "Flip a coin, optionally calling it",
			Usage:       "flip [heads|tails]",
			Matches:     func(text string) bool { return flipRe.MatchString(strings.TrimSpace(text)) },
			Run:         t.flip,
		},
		{
			Name:        "pick",
			Description: "Randomly pick N winners from this chat",
			Usage:       "pick {number}",
			Matches:     func(text string) bool { return pickRe.MatchString(strings.TrimSpace(text)) },
			Run:         t.pick,
		},
		{
			Name:        "roast",
			Description: "Roast a tagged user",
			Usage:       "roast [@someone]",
			Matches:     func(text string) bool { return roastRe.MatchString(strings.TrimSpace(text)) },
			Run:         t.roast,
		},
		{
			Name:        "hello",
			Aliases:     []string{"hi", "hey", "howdy"},
			Description: "Say hi back with a fun quip",
			Usage:       "hello",
			Matches:     greetingRe.MatchString,
			Run:         t.hello,
		},
	}
}

func (t *toolbox) hello(ctx context.Context, req *Request) error {
	you := FormatMention(req.CreatorID, req.CreatorName)
	quip := fmt.Sprintf(greetingQuips[t.intN(len(greetingQuips))], you)
	if req.CreatorID == "" {
		return req.Reply(ctx, quip)
	}
	return req.Reply(ctx, quip, models.Mention{ID: req.CreatorID, Type: "Person"})
}

func (t *toolbox) flip(ctx context.Context, req *Request) error {
	side := "heads"
	if t.intN(2) == 1 {
		side = "tails"
	}

	m := flipRe.FindStringSubmatch(strings.TrimSpace(req.Text))
	call := ""
	if len(m) > 1 {
		call = strings.ToLower(m[1])
	}

	text := fmt.Sprintf("🪙 It's **%s**!", side)
	switch {
	case call == "":
	case call == side:
		text += fmt.Sprintf(" %s called it. 🎉", FormatMention(req.CreatorID, req.CreatorName))
	default:
		text += fmt.Sprintf(" Sorry %s, you called %s. 😬", FormatMention(req.CreatorID, req.CreatorName), call)
	}

	if req.CreatorID == "" || call == "" {
		return req.Reply(ctx, text)
	}
	return req.Reply(ctx, text, models.Mention{ID: req.CreatorID, Type: "Person"})
}

func (t *toolbox) pick(ctx context.Context, req *Request) error {
	m := pickArgRe.FindStringSubmatch(req.Text)
	if m == nil {
		return req.Reply(ctx, `Usage: pick {number}, e.g. "pick 3"`)
	}
	requested, err := strconv.Atoi(m[1])
	if err != nil || requested <= 0 {
		return req.Reply(ctx, "Please provide a positive number of winners to pick.")
	}
	if t.deps.Members == nil || req.ChatID == "" {
		return req.Reply(ctx, "I could not determine this chat.")
	}

	members := t.deps.Members.ChatMembers(ctx, req.ChatID)
	pool := make([]string, 0, len(members))
	for id := range members {
		if id != t.deps.BotID {
			pool = append(pool, id)
		}
	}
	if len(pool) == 0 {
		return req.Reply(ctx, "I couldn't find anyone to pick from in this chat.")
	}

	sort.Strings(pool)
	t.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	count := min(requested, len(pool))
	note := ""
	if requested > len(pool) {
		note = fmt.Sprintf(" (only %d available)", len(pool))
	}
	plural := ""
	if count > 1 {
		plural = "s"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎟️ Lottery time! Picking %d winner%s%s:\n", count, plural, note)
	mentions := make([]models.Mention, 0, count)
	for i, id := range pool[:count] {
		fmt.Fprintf(&b, "%d. %s\n", i+1, MentionPerson(id))
		mentions = append(mentions, models.Mention{ID: id, Type: "Person"})
	}
	b.WriteString("\nYippee woohoo to the winners!")

	return req.Reply(ctx, b.String(), mentions...)
}

const roastSystemPrompt = "You are SWAMPbot, a playful office chat bot. Write one short, spicy but " +
	"good-natured roast (max 2 sentences). No slurs, nothing about protected traits, appearance, " +
	"or family. Keep it work-safe. Reply with the roast only."

func (t *toolbox) roast(ctx context.Context, req *Request) error {
	target, mention := t.roastTarget(req)

	line := ""
	if t.deps.LLM != nil {
		user := fmt.Sprintf("Roast %s. Refer to them exactly as %q.", target, target)
		out, err := t.deps.LLM.GenerateText(ctx, roastSystemPrompt, user, 120, 0.9)
		if err == nil {
			line = strings.TrimSpace(out)
		}
	}
	if line == "" {
		line = fmt.Sprintf(cannedRoasts[t.intN(len(cannedRoasts))], target)
	}

	if mention == nil {
		return req.Reply(ctx, "🔥 "+line)
	}
	return req.Reply(ctx, "🔥 "+line, *mention)
}

// roastTarget prefers a mentioned person other than the bot, then a plain
// @Name in the text, then the author.
func (t *toolbox) roastTarget(req *Request) (string, *models.Mention) {
	for _, m := range req.Mentions {
		if m.ID != "" && m.ID != t.deps.BotID {
			return MentionPerson(m.ID), &models.Mention{ID: m.ID, Type: "Person"}
		}
	}
	if m := atNameRe.FindStringSubmatch(req.Text); m != nil {
		return "@" + m[1], nil
	}
	if req.CreatorID != "" {
		return MentionPerson(req.CreatorID), &models.Mention{ID: req.CreatorID, Type: "Person"}
	}
	return FormatMention("", req.CreatorName), nil
}
