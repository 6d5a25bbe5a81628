package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"swampbot/internal/models"

	"go.uber.org/zap"
)

// DefaultPrefix may precede a command name.
const DefaultPrefix = "!"

// ReplyFunc posts text back into the chat the command came from.
type ReplyFunc func(ctx context.Context, text string, mentions ...models.Mention) error

// Request is one command invocation.
type Request struct {
	// Text is the command text with the bot name removed.
	Text string
	Args []string

	ChatID      string
	ChatType    string
	CreatorID   string
	CreatorName string
	Mentions    []models.Mention

	Reply ReplyFunc
}

// Command is a chat command. Matches, when set, claims a message before the
// name and alias lookup runs.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Matches     func(text string) bool
	Run         func(ctx context.Context, req *Request) error
}

func (c Command) names() []string {
	return append([]string{c.Name}, c.Aliases...)
}

// Router dispatches command text to commands.
type Router struct {
	commands []Command
	prefix   string
	logger   *zap.Logger
}

// NewRouter builds a router over cmds and appends the help command.
func NewRouter(prefix string, logger *zap.Logger, cmds ...Command) *Router {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	r := &Router{prefix: prefix, logger: logger}
	r.commands = append(append(r.commands, cmds...), r.helpCommand())
	return r
}

// Commands lists the registered commands, help included.
func (r *Router) Commands() []Command {
	return r.commands
}

func (r *Router) parse(text string) (string, []string) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, r.prefix))
	tokens := strings.Fields(trimmed)
	if len(tokens) == 0 {
		return "", nil
	}
	return strings.ToLower(tokens[0]), tokens[1:]
}

// Lookup finds the command for text: explicit matchers first, then the first
// token against names and aliases.
func (r *Router) Lookup(text string) (*Command, []string) {
	name, args := r.parse(text)
	if name == "" {
		return nil, nil
	}

	stripped := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), r.prefix))
	for i := range r.commands {
		if m := r.commands[i].Matches; m != nil && m(stripped) {
			return &r.commands[i], args
		}
	}
	for i := range r.commands {
		for _, n := range r.commands[i].names() {
			if strings.EqualFold(n, name) {
				return &r.commands[i], args
			}
		}
	}
	return nil, args
}

// Handle runs the command named by req.Text. Empty or unknown commands get
// the help text; a failing command gets an apology.
func (r *Router) Handle(ctx context.Context, req *Request) error {
	cmd, args := r.Lookup(req.Text)
	if cmd == nil {
		return req.Reply(ctx, r.HelpText())
	}

	req.Text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(req.Text), r.prefix))
	req.Args = args

	r.logger.Info("Running command",
		zap.String("command", cmd.Name),
		zap.String("chat_id", req.ChatID),
		zap.String("creator_id", req.CreatorID))

	if err := cmd.Run(ctx, req); err != nil {
		r.logger.Error("Command failed", zap.String("command", cmd.Name), zap.Error(err))
		return req.Reply(ctx, fmt.Sprintf("Whoops, that command hiccuped: %v", err))
	}
	return nil
}

// HelpText lists every command with its aliases, description and usage.
func (r *Router) HelpText() string {
	var b strings.Builder
	b.WriteString("🔍 Here's what I can do:\n")
	for _, c := range r.commands {
		fmt.Fprintf(&b, "• **%s** — %s", strings.Join(c.names(), ", "), c.Description)
		if c.Usage != "" {
			fmt.Fprintf(&b, " — `%s`", c.Usage)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nTip: mention me, then your command (@SWAMPbot [command])")
	return b.String()
}

func (r *Router) helpCommand() Command {
	return Command{
		Name:        "help",
		Aliases:     []string{"h", "?"},
		Description: "Show available commands",
		Usage:       "help",
		Run: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, r.HelpText())
		},
	}
}

// ExtractCommandText removes every match of botName from text, leaving the
// command. A nil pattern only collapses whitespace.
func ExtractCommandText(text string, botName *regexp.Regexp) string {
	if botName != nil {
		text = botName.ReplaceAllString(text, "")
	}
	return strings.Join(strings.Fields(text), " ")
}
