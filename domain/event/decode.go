package event

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Decode turns a raw payload into the variant bound to name.
// Payloads that don't match the expected shape are rejected here,
// before they can reach a manager.
func Decode(name Name, raw json.RawMessage) (Inbound, error) {
	switch name {
	case UserJoined:
		user, err := decode[domain.User](name, raw)
		if err != nil {
			return nil, err
		}
		return PeerJoined{User: user}, nil
	case UserLeft:
		user, err := decode[domain.User](name, raw)
		if err != nil {
			return nil, err
		}
		return PeerLeft{User: user}, nil
	case UsersOnline:
		return decodeRoster(raw)
	case NewMessage:
		message, err := decode[domain.Message](name, raw)
		if err != nil {
			return nil, err
		}
		return MessageReceived{Message: message}, nil
	case UserTyping:
		return variant[TypingStarted](name, raw)
	case UserStoppedTyping:
		return variant[TypingStopped](name, raw)
	case VoiceUserJoined:
		return variant[VoiceJoined](name, raw)
	case VoiceUserLeft:
		return variant[VoiceLeft](name, raw)
	case VoiceUserMuted:
		return variant[VoiceMuted](name, raw)
	case VoiceUserSpeaking:
		return variant[VoiceSpeaking](name, raw)
	}
	return nil, fmt.Errorf("%w: %s", errors.ErrUnknownEvent, name)
}

func variant[T Inbound](name Name, raw json.RawMessage) (Inbound, error) {
	v, err := decode[T](name, raw)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func decode[T any](name Name, raw json.RawMessage) (T, error) {
	var v T
	if err := unmarshal(name, raw, &v); err != nil {
		return v, err
	}
	if err := validate.Struct(v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", errors.ErrInvalidPayload, name, err)
	}
	return v, nil
}

func decodeRoster(raw json.RawMessage) (Inbound, error) {
	var entries []domain.PresenceEntry
	if err := unmarshal(UsersOnline, raw, &entries); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errors.ErrInvalidPayload, UsersOnline, err)
		}
	}
	return RosterSnapshot{Entries: entries}, nil
}

func unmarshal(name Name, raw json.RawMessage, target any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: %s: empty payload", errors.ErrInvalidPayload, name)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrInvalidPayload, name, err)
	}
	return nil
}
