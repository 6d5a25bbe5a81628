package people

import (
	"context"
	"errors"
	"sync"
	"testing"

	"swampbot/internal/models"
	"swampbot/internal/ringcentral"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeDirectory struct {
	mu          sync.Mutex
	people      map[string]ringcentral.Person
	members     map[string][]string
	personCalls map[string]int
	memberCalls int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		people:      map[string]ringcentral.Person{},
		members:     map[string][]string{},
		personCalls: map[string]int{},
	}
}

func (f *fakeDirectory) GetPerson(ctx context.Context, personID string) (*ringcentral.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.personCalls[personID]++
	p, ok := f.people[personID]
	if !ok {
		return nil, errors.New("not found")
	}
	return &p, nil
}

func (f *fakeDirectory) GetConversationMembers(ctx context.Context, chatID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCalls++
	ids, ok := f.members[chatID]
	if !ok {
		return nil, errors.New("no such chat")
	}
	return ids, nil
}

func TestResolver_PersonLookupIsCached(t *testing.T) {
	dir := newFakeDirectory()
	dir.people["1"] = ringcentral.Person{ID: "1", FirstName: "Ann", LastName: "Lee"}
	r := NewResolver(dir, zap.NewNop())

	assert.Equal(t, "Ann Lee", r.DisplayName(context.Background(), "1", "c1"))
	assert.Equal(t, "Ann Lee", r.DisplayName(context.Background(), "1", "c1"))
	assert.Equal(t, 1, dir.personCalls["1"])
}

func TestResolver_MentionsWinOverLookup(t *testing.T) {
	dir := newFakeDirectory()
	r := NewResolver(dir, zap.NewNop())

	name := r.Resolve(context.Background(), "2", "c1", []models.Mention{{ID: "2", Name: "Bo"}})
	assert.Equal(t, "Bo", name)
	assert.Zero(t, dir.personCalls["2"])
}

func TestResolver_FallsBackToChatMembersThenFriend(t *testing.T) {
	dir := newFakeDirectory()
	dir.members["c1"] = []string{"3"}
	r := NewResolver(dir, zap.NewNop())

	assert.Equal(t, Fallback, r.DisplayName(context.Background(), "3", "c1"))
	assert.Equal(t, Fallback, r.DisplayName(context.Background(), "", "c1"))
	assert.Equal(t, Fallback, r.DisplayName(context.Background(), "9", "missing"))
}

func TestResolver_ChatMembersFanOutAndCache(t *testing.T) {
	dir := newFakeDirectory()
	dir.people["1"] = ringcentral.Person{Name: "Ann"}
	dir.people["2"] = ringcentral.Person{Email: "bo@example.com"}
	dir.members["c1"] = []string{"1", "2"}
	r := NewResolver(dir, zap.NewNop())

	want := map[string]string{"1": "Ann", "2": "bo@example.com"}
	assert.Equal(t, want, r.ChatMembers(context.Background(), "c1"))
	assert.Equal(t, want, r.ChatMembers(context.Background(), "c1"))
	assert.Equal(t, 1, dir.memberCalls)

	r.Forget("c1")
	r.ChatMembers(context.Background(), "c1")
	assert.Equal(t, 2, dir.memberCalls)
	// names learned on the first pass are served from cache
	assert.Equal(t, 1, dir.personCalls["1"])
}

func TestResolver_PartialMemberListIsNotCached(t *testing.T) {
	dir := newFakeDirectory()
	dir.people["1"] = ringcentral.Person{Name: "Ann"}
	dir.members["c1"] = []string{"1", "3"}
	r := NewResolver(dir, zap.NewNop())

	assert.Equal(t, map[string]string{"1": "Ann"}, r.ChatMembers(context.Background(), "c1"))
	assert.Equal(t, 1, dir.memberCalls)

	dir.mu.Lock()
	dir.people["3"] = ringcentral.Person{Name: "Cy"}
	dir.mu.Unlock()

	assert.Equal(t, map[string]string{"1": "Ann", "3": "Cy"}, r.ChatMembers(context.Background(), "c1"))
	assert.Equal(t, 2, dir.memberCalls)

	r.ChatMembers(context.Background(), "c1")
	assert.Equal(t, 2, dir.memberCalls)
}
