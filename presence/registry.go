// Package presence keeps the roster of known users and their status.
package presence

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"log/slog"

	"github.com/samber/lo"
)

type Publisher interface {
	Publish(e event.DomainEvent)
}

// Registry maps user ids to presence entries.
// Incremental updates and snapshots are last-write-wins per user id.
type Registry struct {
	log     *slog.Logger
	pub     Publisher
	entries map[string]domain.PresenceEntry
	order   []string
}

func NewRegistry(log *slog.Logger, pub Publisher) *Registry {
	return &Registry{
		log:     log,
		pub:     pub,
		entries: make(map[string]domain.PresenceEntry),
	}
}

// ReplaceRoster overwrites the whole roster. Users absent from entries
// are dropped; a repeated id inside entries keeps its last value.
func (r *Registry) ReplaceRoster(entries []domain.PresenceEntry) {
	r.entries = make(map[string]domain.PresenceEntry, len(entries))
	r.order = r.order[:0]
	for _, e := range entries {
		if _, ok := r.entries[e.UserID]; !ok {
			r.order = append(r.order, e.UserID)
		}
		r.entries[e.UserID] = e
	}
	r.log.Debug("Roster replaced", "size", len(r.order))
	r.publish()
}

func (r *Registry) Upsert(entry domain.PresenceEntry) {
	if _, ok := r.entries[entry.UserID]; !ok {
		r.order = append(r.order, entry.UserID)
	}
	r.entries[entry.UserID] = entry
	r.publish()
}

func (r *Registry) Remove(userID string) bool {
	if _, ok := r.entries[userID]; !ok {
		return false
	}
	delete(r.entries, userID)
	r.order = lo.Without(r.order, userID)
	r.publish()
	return true
}

func (r *Registry) Get(userID string) (domain.PresenceEntry, bool) {
	e, ok := r.entries[userID]
	return e, ok
}

// Entries returns the roster in insertion order.
func (r *Registry) Entries() []domain.PresenceEntry {
	return lo.Map(r.order, func(id string, _ int) domain.PresenceEntry {
		return r.entries[id]
	})
}

func (r *Registry) Len() int { return len(r.order) }

func (r *Registry) publish() {
	if r.pub == nil {
		return
	}
	r.pub.Publish(event.RosterChanged{Entries: r.Entries()})
}
