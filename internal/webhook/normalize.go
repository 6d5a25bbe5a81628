package webhook

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"swampbot/internal/models"
)

// PostsEventPath is the event filter for team-messaging posts.
const PostsEventPath = "/team-messaging/v1/posts"

// DefaultCreatorName is used when a post carries no creator name.
const DefaultCreatorName = "friend"

// ChatTypeDirect marks a one-on-one conversation with the bot.
const ChatTypeDirect = "Direct"

var (
	mentionMarkupRe = regexp.MustCompile(`!\[:[^\]]+\]\([^)]+\)`)
	blockquoteRe    = regexp.MustCompile(`(?m)^>.*$`)
)

// Unwrap returns the inner event when the payload is wrapped in a "body" object.
func Unwrap(raw map[string]any) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	if inner, ok := raw["body"].(map[string]any); ok {
		return inner
	}
	return raw
}

// IsPostEvent reports whether body is a new-post event. An explicit eventType
// wins; without one, a post or message node or the posts event path is enough.
func IsPostEvent(body map[string]any) bool {
	if eventType := str(body["eventType"]); eventType != "" {
		return strings.EqualFold(eventType, "postadded")
	}
	if _, ok := body["post"].(map[string]any); ok {
		return true
	}
	if _, ok := body["message"].(map[string]any); ok {
		return true
	}
	return strings.Contains(str(body["event"]), PostsEventPath)
}

// MembershipChatID returns the chat id of a GroupJoined, GroupLeft or
// GroupChanged event.
func MembershipChatID(body map[string]any) (string, bool) {
	switch strings.ToLower(str(body["eventType"])) {
	case "groupjoined", "groupleft", "groupchanged":
	default:
		return "", false
	}
	id := first(body["id"], body["groupId"], body["chatId"])
	return id, id != ""
}

func postNode(body map[string]any) map[string]any {
	if p, ok := body["post"].(map[string]any); ok {
		return p
	}
	if m, ok := body["message"].(map[string]any); ok {
		return m
	}
	return body
}

// Normalize maps any supported payload shape onto a models.Post. Each field
// is taken from the first known path that has a value; missing fields fall
// back to defaults, so Normalize never fails.
func Normalize(body map[string]any, now time.Time) models.Post {
	post := postNode(body)

	creator, _ := post["creator"].(map[string]any)
	if creator == nil {
		creator, _ = body["creator"].(map[string]any)
	}

	p := models.Post{
		ID:        first(post["id"], body["id"]),
		ChatID:    first(post["groupId"], post["chatId"], body["groupId"], body["chatId"]),
		CreatorID: first(creator["id"], post["creatorId"], body["creatorId"]),
		ParentID:  first(post["parentId"], post["rootId"], post["topicId"], post["quoteOfId"]),
		ChatType: first(dig(post, "group", "type"), dig(body, "group", "type"),
			dig(body, "chat", "type"), body["groupType"], body["chatType"]),
		RawText: first(post["text"], body["text"]),
	}

	p.CreatorName = first(creator["name"], joinName(creator))
	if p.CreatorName == "" {
		p.CreatorName = DefaultCreatorName
	}

	p.CreatedAt = now.UnixMilli()
	if ts := first(post["creationTime"], body["creationTime"]); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			p.CreatedAt = t.UnixMilli()
		}
	}

	for _, candidate := range []any{post["mentions"], dig(body, "post", "mentions"), dig(body, "message", "mentions"), body["mentions"]} {
		if list, ok := candidate.([]any); ok && len(list) > 0 {
			p.Mentions = mentions(list)
			break
		}
	}

	p.CleanText = CleanText(p.RawText)
	return p
}

// CleanText strips mention and quote markup and quoted lines.
func CleanText(raw string) string {
	text := mentionMarkupRe.ReplaceAllString(raw, "")
	text = blockquoteRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// NamePattern matches botName as a whole word, with an optional leading @
// and trailing colon or comma. It returns nil for an empty name.
func NamePattern(botName string) *regexp.Regexp {
	if botName == "" {
		return nil
	}
	return regexp.MustCompile(`(?i)@?\b` + regexp.QuoteMeta(botName) + `\b[:,]?`)
}

// WasBotMentioned reports whether the bot was addressed: a direct chat, a
// mention of botID, or the bot name (see NamePattern) in the text.
func WasBotMentioned(p models.Post, botID string, botName *regexp.Regexp) bool {
	if p.ChatType == ChatTypeDirect {
		return true
	}
	if botID != "" {
		for _, m := range p.Mentions {
			if m.ID == botID {
				return true
			}
		}
	}
	return botName != nil && botName.MatchString(p.CleanText)
}

func mentions(list []any) []models.Mention {
	out := make([]models.Mention, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := str(m["id"])
		if id == "" {
			continue
		}
		out = append(out, models.Mention{ID: id, Type: str(m["type"]), Name: str(m["name"])})
	}
	return out
}

func joinName(person map[string]any) string {
	return strings.TrimSpace(str(person["firstName"]) + " " + str(person["lastName"]))
}

func dig(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = node[k]
	}
	return cur
}

func first(values ...any) string {
	for _, v := range values {
		if s := str(v); s != "" {
			return s
		}
	}
	return ""
}

// str renders scalar JSON values as strings; ids may arrive as numbers.
func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}
