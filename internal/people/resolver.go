package people

import (
	"context"
	"strings"
	"sync"

	"swampbot/internal/models"
	"swampbot/internal/ringcentral"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fallback is the name used when nobody could be resolved.
const Fallback = "friend"

const (
	NameCacheSize   = 1000
	MemberCacheSize = 100
	lookupWorkers   = 8
)

// Directory is the platform lookup surface the resolver needs.
type Directory interface {
	GetPerson(ctx context.Context, personID string) (*ringcentral.Person, error)
	GetConversationMembers(ctx context.Context, chatID string) ([]string, error)
}

// Resolver turns person ids into display names, caching what it learns.
type Resolver struct {
	dir     Directory
	names   *lru.Cache[string, string]
	members *lru.Cache[string, map[string]string]
	logger  *zap.Logger
}

func NewResolver(dir Directory, logger *zap.Logger) *Resolver {
	names, _ := lru.New[string, string](NameCacheSize)
	members, _ := lru.New[string, map[string]string](MemberCacheSize)
	return &Resolver{dir: dir, names: names, members: members, logger: logger}
}

// DisplayName resolves personID without mention hints.
func (r *Resolver) DisplayName(ctx context.Context, personID, chatID string) string {
	return r.Resolve(ctx, personID, chatID, nil)
}

// Resolve tries the cache, the post's mentions, a person lookup and finally
// the chat member list. It never fails; unknown people are Fallback.
func (r *Resolver) Resolve(ctx context.Context, personID, chatID string, mentions []models.Mention) string {
	if personID == "" {
		return Fallback
	}
	if name, ok := r.names.Get(personID); ok {
		return name
	}

	for _, m := range mentions {
		if m.ID == personID && strings.TrimSpace(m.Name) != "" {
			name := strings.TrimSpace(m.Name)
			r.names.Add(personID, name)
			return name
		}
	}

	if name := r.lookup(ctx, personID); name != "" {
		return name
	}

	if chatID != "" {
		if name := r.ChatMembers(ctx, chatID)[personID]; name != "" {
			return name
		}
	}
	return Fallback
}

func (r *Resolver) lookup(ctx context.Context, personID string) string {
	p, err := r.dir.GetPerson(ctx, personID)
	if err != nil {
		if ringcentral.IsNotFound(err) {
			r.logger.Debug("Person not found", zap.String("person_id", personID))
		} else {
			r.logger.Warn("Person lookup failed", zap.String("person_id", personID), zap.Error(err))
		}
		return ""
	}
	name := strings.TrimSpace(p.DisplayName())
	if name != "" {
		r.names.Add(personID, name)
	}
	return name
}

// ChatMembers maps the member ids of a chat to display names. Members whose
// name cannot be found are left out. The result is cached per chat only when
// every member resolved, so a failed or timed-out lookup is retried later.
func (r *Resolver) ChatMembers(ctx context.Context, chatID string) map[string]string {
	if cached, ok := r.members.Get(chatID); ok {
		return cached
	}

	ids, err := r.dir.GetConversationMembers(ctx, chatID)
	if err != nil {
		r.logger.Warn("Failed to load chat members", zap.String("chat_id", chatID), zap.Error(err))
		return map[string]string{}
	}

	var mu sync.Mutex
	out := make(map[string]string, len(ids))
	complete := true

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupWorkers)
	for _, id := range ids {
		if name, ok := r.names.Get(id); ok {
			mu.Lock()
			out[id] = name
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			name := r.lookup(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if name == "" {
				complete = false
				return nil
			}
			out[id] = name
			return nil
		})
	}
	_ = g.Wait()

	if complete && ctx.Err() == nil {
		r.members.Add(chatID, out)
	}
	return out
}

// Forget drops the cached member list of a chat.
func (r *Resolver) Forget(chatID string) {
	r.members.Remove(chatID)
}
