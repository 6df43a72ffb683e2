package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServer_Channel(t *testing.T) {
	req := require.New(t)
	server := Server{ID: "s1", Channels: []Channel{
		{ID: "general", Name: "general", Kind: ChannelText},
		{ID: "gaming", Name: "Gaming", Kind: ChannelVoice},
	}}

	c, ok := server.Channel("gaming")
	req.True(ok)
	req.Equal(ChannelVoice, c.Kind)

	_, ok = server.Channel("missing")
	req.False(ok)

	req.True(Selection{ChannelID: "general", Kind: ChannelText}.HasTextChannel())
	req.False(Selection{ChannelID: "gaming", Kind: ChannelVoice}.HasTextChannel())
	req.False(Selection{}.HasTextChannel())
}
