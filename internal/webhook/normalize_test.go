package webhook

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"swampbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, payload string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewBufferString(payload))
	dec.UseNumber()
	var out map[string]any
	require.NoError(t, dec.Decode(&out))
	return out
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNormalize_SubscriptionEnvelope(t *testing.T) {
	raw := decode(t, `{
		"uuid": "u-1",
		"event": "/restapi/v1.0/glip/posts",
		"body": {
			"id": "1111",
			"groupId": "2222",
			"type": "TextMessage",
			"text": "![:Person](999) is the new car green?",
			"creatorId": "3333",
			"eventType": "PostAdded",
			"creationTime": "2025-02-28T15:04:05.123Z",
			"mentions": [{"id": "999", "type": "Person", "name": "swampbot"}]
		}
	}`)

	body := Unwrap(raw)
	require.True(t, IsPostEvent(body))

	p := Normalize(body, fixedNow)
	assert.Equal(t, "1111", p.ID)
	assert.Equal(t, "2222", p.ChatID)
	assert.Equal(t, "3333", p.CreatorID)
	assert.Equal(t, DefaultCreatorName, p.CreatorName)
	assert.Equal(t, time.Date(2025, 2, 28, 15, 4, 5, 123_000_000, time.UTC).UnixMilli(), p.CreatedAt)
	assert.Equal(t, "is the new car green?", p.CleanText)
	assert.Equal(t, []models.Mention{{ID: "999", Type: "Person", Name: "swampbot"}}, p.Mentions)
}

func TestNormalize_BotPostNode(t *testing.T) {
	body := decode(t, `{
		"eventType": "PostAdded",
		"post": {
			"id": 4444,
			"chatId": "5555",
			"text": "status on the deploy",
			"parentId": "4000",
			"creator": {"id": "6666", "firstName": "Ann", "lastName": "Lee"},
			"group": {"type": "Team"}
		}
	}`)

	require.True(t, IsPostEvent(body))
	p := Normalize(body, fixedNow)
	assert.Equal(t, "4444", p.ID)
	assert.Equal(t, "5555", p.ChatID)
	assert.Equal(t, "6666", p.CreatorID)
	assert.Equal(t, "Ann Lee", p.CreatorName)
	assert.Equal(t, "4000", p.ParentID)
	assert.Equal(t, "Team", p.ChatType)
	assert.Equal(t, fixedNow.UnixMilli(), p.CreatedAt)
}

func TestNormalize_ParentFallbacksAndChatType(t *testing.T) {
	body := decode(t, `{
		"message": {"id": "1", "groupId": "2", "topicId": "t-9", "text": "> quoted line\nactual text"},
		"chat": {"type": "Direct"}
	}`)

	p := Normalize(body, fixedNow)
	assert.Equal(t, "t-9", p.ParentID)
	assert.Equal(t, ChatTypeDirect, p.ChatType)
	assert.Equal(t, "actual text", p.CleanText)
	assert.Equal(t, "> quoted line\nactual text", p.RawText)
}

func TestNormalize_EmptyPayloadIsTotal(t *testing.T) {
	p := Normalize(map[string]any{}, fixedNow)
	assert.Empty(t, p.ID)
	assert.Empty(t, p.CleanText)
	assert.Equal(t, DefaultCreatorName, p.CreatorName)
	assert.Equal(t, fixedNow.UnixMilli(), p.CreatedAt)

	assert.Empty(t, Unwrap(nil))
}

func TestIsPostEvent(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"post added", `{"eventType":"PostAdded"}`, true},
		{"post changed", `{"eventType":"PostChanged","post":{"id":"1"}}`, false},
		{"group joined", `{"eventType":"GroupJoined"}`, false},
		{"post node", `{"post":{"id":"1"}}`, true},
		{"message node", `{"message":{"id":"1"}}`, true},
		{"posts path", `{"event":"/team-messaging/v1/posts?eventType=PostAdded"}`, true},
		{"unrelated", `{"event":"/restapi/v1.0/account/~/extension/~"}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsPostEvent(decode(t, tc.body)))
		})
	}
}

func TestMembershipChatID(t *testing.T) {
	id, ok := MembershipChatID(decode(t, `{"eventType":"GroupChanged","id":"c7","type":"Team"}`))
	assert.True(t, ok)
	assert.Equal(t, "c7", id)

	_, ok = MembershipChatID(decode(t, `{"eventType":"PostAdded","id":"p1"}`))
	assert.False(t, ok)
	_, ok = MembershipChatID(decode(t, `{"eventType":"GroupJoined"}`))
	assert.False(t, ok)
}

func TestWasBotMentioned(t *testing.T) {
	name := NamePattern("swampbot")
	assert.True(t, WasBotMentioned(models.Post{ChatType: "Direct"}, "1", name))
	assert.True(t, WasBotMentioned(models.Post{Mentions: []models.Mention{{ID: "1"}}}, "1", name))
	assert.True(t, WasBotMentioned(models.Post{CleanText: "hey SwampBot ping"}, "1", name))
	assert.True(t, WasBotMentioned(models.Post{CleanText: "@swampbot: flip"}, "1", name))
	assert.False(t, WasBotMentioned(models.Post{CleanText: "swampbots are cool"}, "1", name))
	assert.False(t, WasBotMentioned(models.Post{Mentions: []models.Mention{{ID: "2"}}}, "", NamePattern("")))
	assert.Nil(t, NamePattern(""))
}
