package drafter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"swampbot/internal/models"

	"go.uber.org/zap"
)

const (
	// MaxQuestionChars bounds the new message in the prompt
	MaxQuestionChars = 480
	// MaxItemChars bounds each history excerpt in the prompt
	MaxItemChars = 160
	// DefaultMaxItems caps how many history items reach the model
	DefaultMaxItems = 8
)

// JSONGenerator produces a JSON object for a structured request.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, req models.StructuredRequest) (json.RawMessage, error)
}

type Config struct {
	Enabled     bool
	MaxTokens   int
	Temperature float64
	MaxItems    int
}

// Drafter decides whether history already answers a question and writes the recap.
type Drafter struct {
	llm    JSONGenerator
	cfg    Config
	logger *zap.Logger
}

func New(llm JSONGenerator, cfg Config, logger *zap.Logger) *Drafter {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 384
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	return &Drafter{llm: llm, cfg: cfg, logger: logger}
}

var decisionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"duplicate":  map[string]any{"type": "boolean"},
		"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"reply":      map[string]any{"type": "string"},
	},
	"required":             []string{"duplicate", "confidence", "reply"},
	"additionalProperties": false,
}

const systemPrompt = "You detect duplicate questions by scanning RECENT MESSAGES and produce a concise recap.\n" +
	"Only use information explicitly stated in RECENT MESSAGES. Do not invent facts.\n" +
	"Return ONLY via the provided tool/function."

const rules = "Rules:\n" +
	"- duplicate=true only if a message gives a clear declarative answer (yes/no, a specific fact, a date, a count). Another question is not an answer.\n" +
	"- Never cite a message that is the QUESTION itself.\n" +
	"- Ignore typos and small wording differences between the QUESTION and older questions.\n" +
	"- Cite with [index] and include the author and date of the cited message in reply.\n" +
	"- Keep reply to 1-4 short sentences and quote the relevant part.\n" +
	"- If not clearly answered, set duplicate=false and reply to an empty string."

const example = "EXAMPLE\n" +
	"QUESTION:\nis standup moved to 10 tmrw?\n\n" +
	"RECENT MESSAGES (newest first):\n" +
	"[1] Mar 3, 9:12 AM CST - Dana: is standup moving tomorrow?\n" +
	"[2] Mar 2, 4:40 PM CST - Lee: yes, standup is at 10 tomorrow because of the all-hands\n\n" +
	`DECISION: {"duplicate":true,"confidence":0.9,"reply":"Yes. Lee said \"standup is at 10 tomorrow because of the all-hands\" [2] (Mar 2, 4:40 PM CST, Lee)."}` + "\n\n" +
	"QUESTION:\nwhat's the vpn hostname?\n\n" +
	"RECENT MESSAGES (newest first):\n" +
	"[1] Mar 3, 9:30 AM CST - Dana: anyone know the vpn hostname?\n" +
	"[2] Mar 3, 8:02 AM CST - Lee: coffee machine is fixed\n\n" +
	`DECISION: {"duplicate":false,"confidence":0.1,"reply":""}`

// Draft never fails. If the model is unavailable or its answer unusable, a
// local heuristic is tried before giving up with a non-duplicate decision.
func (d *Drafter) Draft(ctx context.Context, question string, items []models.HistoryItem) models.Decision {
	if len(items) == 0 {
		return models.Decision{}
	}
	if len(items) > d.cfg.MaxItems {
		items = items[:d.cfg.MaxItems]
	}

	dec, ok := d.ask(ctx, question, items)
	if !ok {
		dec = Heuristic(question, items)
	}
	return Validate(dec, question, items)
}

func (d *Drafter) ask(ctx context.Context, question string, items []models.HistoryItem) (models.Decision, bool) {
	if !d.cfg.Enabled || d.llm == nil {
		return models.Decision{}, false
	}

	user := "QUESTION:\n" + truncate(question, MaxQuestionChars) + "\n\n" +
		"RECENT MESSAGES (newest first):\n" + BuildList(items) + "\n\n" + rules

	raw, err := d.llm.GenerateJSON(ctx, models.StructuredRequest{
		System:          systemPrompt,
		Examples:        []string{example},
		User:            user,
		ToolName:        "set_decision",
		ToolDescription: "Return the decision as strict JSON.",
		Schema:          decisionSchema,
		MaxTokens:       d.cfg.MaxTokens,
		Temperature:     d.cfg.Temperature,
	})
	if err != nil {
		d.logger.Warn("Recap draft failed", zap.Error(err))
		return models.Decision{}, false
	}

	var out struct {
		Duplicate  *bool   `json:"duplicate"`
		Confidence float64 `json:"confidence"`
		Reply      string  `json:"reply"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.Duplicate == nil {
		d.logger.Warn("Malformed recap decision", zap.ByteString("raw", raw))
		return models.Decision{}, false
	}

	return models.Decision{Duplicate: *out.Duplicate, Confidence: out.Confidence, Reply: out.Reply}, true
}

// BuildList renders history items as numbered prompt lines.
func BuildList(items []models.HistoryItem) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("[%d] %s - %s: %s", i+1, it.When, it.Author, Trim(it.Text, MaxItemChars))
	}
	return strings.Join(lines, "\n")
}

// Trim shortens s to roughly max runes keeping its head and tail.
func Trim(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	head := r[:max*70/100]
	tail := r[len(r)-max*25/100:]
	return string(head) + "\n...\n" + string(tail)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var citationRe = regexp.MustCompile(`\[(\d+)\]`)

// Citations returns the valid 1-based item indexes cited in reply.
func Citations(reply string, n int) []int {
	var out []int
	seen := map[int]bool{}
	for _, m := range citationRe.FindAllStringSubmatch(reply, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > n || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}

// Validate enforces the decision contract on a model or heuristic answer.
func Validate(dec models.Decision, question string, items []models.HistoryItem) models.Decision {
	if math.IsNaN(dec.Confidence) || dec.Confidence < 0 {
		dec.Confidence = 0
	}
	if dec.Confidence > 1 {
		dec.Confidence = 1
	}

	dec.Reply = strings.TrimSpace(dec.Reply)
	if !dec.Duplicate || dec.Reply == "" {
		return models.Decision{Confidence: dec.Confidence}
	}

	cited := Citations(dec.Reply, len(items))
	if len(cited) == 0 {
		best := bestMatch(dec.Reply, items)
		if best == 0 {
			return models.Decision{Confidence: dec.Confidence}
		}
		it := items[best-1]
		dec.Reply = fmt.Sprintf("%s [%d] (%s, %s)", dec.Reply, best, it.When, it.Author)
		cited = []int{best}
	}

	q := normalize(question)
	selfOnly := true
	for _, idx := range cited {
		if normalize(items[idx-1].Text) != q {
			selfOnly = false
			break
		}
	}
	if selfOnly {
		return models.Decision{Confidence: dec.Confidence}
	}

	first := items[cited[0]-1]
	if !strings.Contains(dec.Reply, first.Author) || !strings.Contains(dec.Reply, first.When) {
		dec.Reply = fmt.Sprintf("%s (%s, %s)", dec.Reply, first.When, first.Author)
	}
	return dec
}

var whoNeedsHelpRe = regexp.MustCompile(`\b([A-Z][a-zA-Z]+)\b.+\b(?i:needs help)\b`)
var whoLeadRe = regexp.MustCompile(`(?i)^\s*who\b`)
var answerWordRe = regexp.MustCompile(`(?i)\b(yes|yep|yeah|yup|no|nope|confirmed|correct|it is|it's|it isn't|they are|we are|done)\b`)

// Heuristic is the deterministic last resort used when the model cannot
// decide: a "who ... needs help" lookup, then a scan for a yes/no style
// answer sharing at least two content words with the question.
func Heuristic(question string, items []models.HistoryItem) models.Decision {
	if whoLeadRe.MatchString(question) {
		for i, it := range items {
			if m := whoNeedsHelpRe.FindStringSubmatch(it.Text); m != nil {
				return models.Decision{
					Duplicate:  true,
					Confidence: 0.8,
					Reply:      fmt.Sprintf("%s, see [%d] (%s, %s).", m[1], i+1, it.When, it.Author),
				}
			}
		}
	}

	qWords := contentWords(question)
	for i, it := range items {
		if strings.Contains(it.Text, "?") || !answerWordRe.MatchString(it.Text) {
			continue
		}
		if normalize(it.Text) == normalize(question) {
			continue
		}
		if overlap(qWords, contentWords(it.Text)) < 2 {
			continue
		}
		return models.Decision{
			Duplicate:  true,
			Confidence: 0.75,
			Reply:      fmt.Sprintf("%s said %q [%d] (%s, %s).", it.Author, Trim(it.Text, MaxItemChars), i+1, it.When, it.Author),
		}
	}

	return models.Decision{}
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "to": true, "of": true, "in": true, "on": true, "at": true, "for": true,
	"and": true, "or": true, "it": true, "its": true, "we": true, "our": true, "you": true,
	"do": true, "does": true, "did": true, "can": true, "what": true, "who": true, "when": true,
	"where": true, "why": true, "how": true, "this": true, "that": true, "yes": true, "no": true,
	"i": true, "s": true,
}

func contentWords(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
		if !stopWords[w] {
			out[w] = true
		}
	}
	return out
}

func overlap(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}

func bestMatch(reply string, items []models.HistoryItem) int {
	words := contentWords(reply)
	best, bestScore := 0, 0
	for i, it := range items {
		if s := overlap(words, contentWords(it.Text)); s > bestScore {
			best, bestScore = i+1, s
		}
	}
	return best
}

func normalize(s string) string {
	return strings.Join(wordRe.FindAllString(strings.ToLower(s), -1), " ")
}
