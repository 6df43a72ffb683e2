package main

import (
	"chat-sync/domain"
	"time"
)

var catalog = []domain.Server{
	{
		ID:   "home",
		Name: "Direct Messages",
		Icon: "DM",
		Channels: []domain.Channel{
			{ID: "friends", Name: "Friends", Kind: domain.ChannelText},
			{ID: "online", Name: "Online", Kind: domain.ChannelText},
		},
	},
	{
		ID:   "discord-server",
		Name: "Discord Clone Server",
		Icon: "DC",
		Channels: []domain.Channel{
			{ID: "general", Name: "general", Kind: domain.ChannelText, Topic: "General discussion"},
			{ID: "random", Name: "random", Kind: domain.ChannelText, Topic: "Random conversations"},
			{ID: "memes", Name: "memes", Kind: domain.ChannelText, Topic: "Share your best memes"},
			{ID: "general-voice", Name: "General", Kind: domain.ChannelVoice},
			{ID: "gaming", Name: "Gaming", Kind: domain.ChannelVoice},
			{ID: "music", Name: "Music", Kind: domain.ChannelVoice},
		},
	},
	{
		ID:   "gaming-server",
		Name: "Gaming Hub",
		Icon: "GH",
		Channels: []domain.Channel{
			{ID: "announcements", Name: "announcements", Kind: domain.ChannelText},
			{ID: "looking-for-group", Name: "looking-for-group", Kind: domain.ChannelText},
			{ID: "game-discussion", Name: "game-discussion", Kind: domain.ChannelText},
			{ID: "lobby-1", Name: "Lobby 1", Kind: domain.ChannelVoice},
			{ID: "lobby-2", Name: "Lobby 2", Kind: domain.ChannelVoice},
		},
	},
}

// findChannel looks a channel up across every server.
func findChannel(channelID string) (domain.Server, domain.Channel, bool) {
	for _, server := range catalog {
		if channel, ok := server.Channel(channelID); ok {
			return server, channel, true
		}
	}
	return domain.Server{}, domain.Channel{}, false
}

func findServer(serverID string) (domain.Server, bool) {
	for _, server := range catalog {
		if server.ID == serverID {
			return server, true
		}
	}
	return domain.Server{}, false
}

func welcome(channel domain.Channel, at time.Time) []domain.Message {
	return []domain.Message{{
		ID:        "welcome-" + channel.ID,
		Author:    domain.Author{Username: "Discord Bot", Avatar: "DB"},
		Content:   "Welcome to #" + channel.Name + "!",
		Timestamp: at,
		ChannelID: channel.ID,
		Type:      domain.MessageSystem,
	}}
}
