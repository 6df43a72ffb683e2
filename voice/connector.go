package voice

import (
	"chat-sync/domain"
	"chat-sync/runtime/scheduler"
	"time"
)

const DefaultConnectDelay = 2000 * time.Millisecond

// Connector establishes the media side of a voice session. It reports
// success through confirm and returns a cancel func for an abandoned join.
type Connector interface {
	Connect(channelID string, confirm func([]domain.VoiceParticipant)) (cancel func())
}

type Scheduler interface {
	After(d time.Duration, fn func()) scheduler.TaskID
	Cancel(id scheduler.TaskID) bool
}

// DelayedConnector confirms an empty session after a fixed delay.
type DelayedConnector struct {
	sched Scheduler
	delay time.Duration
}

func NewDelayedConnector(sched Scheduler, delay time.Duration) *DelayedConnector {
	if delay <= 0 {
		delay = DefaultConnectDelay
	}
	return &DelayedConnector{sched: sched, delay: delay}
}

func (c *DelayedConnector) Connect(_ string, confirm func([]domain.VoiceParticipant)) func() {
	id := c.sched.After(c.delay, func() { confirm(nil) })
	return func() { c.sched.Cancel(id) }
}

// ManualConnector holds the confirmation until Confirm is called.
type ManualConnector struct {
	channelID string
	confirm   func([]domain.VoiceParticipant)
}

func (c *ManualConnector) Connect(channelID string, confirm func([]domain.VoiceParticipant)) func() {
	c.channelID = channelID
	c.confirm = confirm
	return func() {
		c.channelID = ""
		c.confirm = nil
	}
}

// Pending reports the channel awaiting confirmation, if any.
func (c *ManualConnector) Pending() (string, bool) {
	return c.channelID, c.confirm != nil
}

// Confirm completes the pending join with the given remote participants.
func (c *ManualConnector) Confirm(participants []domain.VoiceParticipant) bool {
	if c.confirm == nil {
		return false
	}
	confirm := c.confirm
	c.channelID = ""
	c.confirm = nil
	confirm(participants)
	return true
}
