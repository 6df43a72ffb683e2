package projection

import (
	"chat-sync/domain"
	"iter"
	"time"
)

// GroupWindow is the largest gap, measured from the group's first
// message, that still joins a message to its group.
const GroupWindow = 5 * time.Minute

// Group is a run of consecutive messages from one author.
type Group struct {
	ID        string
	Author    domain.Author
	Timestamp time.Time
	Messages  []domain.Message
}

// GroupForDisplay lazily splits an ordered log into display groups.
// A new group starts when the author changes or when the message is
// more than GroupWindow after the group's timestamp. It holds no state
// and can be ranged over any number of times.
func GroupForDisplay(messages []domain.Message) iter.Seq[Group] {
	return func(yield func(Group) bool) {
		var current *Group
		for _, m := range messages {
			if current != nil && joins(*current, m) {
				current.Messages = append(current.Messages, m)
				continue
			}
			if current != nil && !yield(*current) {
				return
			}
			current = &Group{
				ID:        m.ID,
				Author:    m.Author,
				Timestamp: m.Timestamp,
				Messages:  []domain.Message{m},
			}
		}
		if current != nil {
			yield(*current)
		}
	}
}

func joins(g Group, m domain.Message) bool {
	return g.Author.Username == m.Author.Username &&
		m.Timestamp.Sub(g.Timestamp) <= GroupWindow
}
