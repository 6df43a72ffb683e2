package domain

type ChannelKind string

const (
	ChannelText  ChannelKind = "text"
	ChannelVoice ChannelKind = "voice"
)

type Channel struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Kind  ChannelKind `json:"type"`
	Topic string      `json:"topic,omitempty"`
}

type Server struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Icon     string    `json:"icon"`
	Channels []Channel `json:"channels"`
}

// Channel looks a channel up by id.
func (s Server) Channel(id string) (Channel, bool) {
	for _, c := range s.Channels {
		if c.ID == id {
			return c, true
		}
	}
	return Channel{}, false
}

// Selection is the navigation state read by the engine.
// An empty ChannelID means no channel is selected.
type Selection struct {
	ServerID  string
	ChannelID string
	Kind      ChannelKind
}

func (s Selection) HasTextChannel() bool {
	return s.ChannelID != "" && s.Kind != ChannelVoice
}
