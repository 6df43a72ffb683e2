package projection

import (
	"chat-sync/domain"
	"chat-sync/sink"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func message(id, author string, at time.Duration) domain.Message {
	return domain.Message{
		ID:        id,
		Author:    domain.Author{Username: author, Avatar: domain.Initials(author)},
		Content:   "content " + id,
		Timestamp: t0.Add(at),
		ChannelID: "general",
	}
}

func newTimeline(opts ...Option) (*Timeline, *sink.Latest) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	latest := sink.NewLatest()
	return NewTimeline(log, sink.NewFanout(log, latest), opts...), latest
}

func TestTimeline_AppendKeepsEveryMessageInArrivalOrder(t *testing.T) {
	req := require.New(t)
	timeline, latest := newTimeline()

	var appended []domain.Message
	for i := 0; i < 20; i++ {
		m := message(fmt.Sprintf("m%d", i%7), "Alice", time.Duration(20-i)*time.Second)
		timeline.Append(m)
		appended = append(appended, m)
	}

	req.Equal(20, timeline.Len("general"))
	req.Equal(appended, timeline.Messages("general"))
	req.Equal(appended, latest.Timeline("general").Messages)
	req.Zero(timeline.Len("random"))
}

func TestTimeline_EchoIsAppendedTwiceByDefault(t *testing.T) {
	req := require.New(t)
	timeline, _ := newTimeline()
	m := message("m1", "Alice", 0)

	// Given the optimistic local insert
	timeline.AppendLocal(m)
	// When the relay echoes the same message back
	timeline.AppendRemote(m)

	// Then both copies are kept
	req.Equal(2, timeline.Len("general"))
}

func TestTimeline_EchoReconciliationDropsPendingCopy(t *testing.T) {
	req := require.New(t)
	timeline, _ := newTimeline(WithEchoReconciliation(time.Minute))
	local := message("m1", "Alice", 0)
	other := message("m2", "Bob", time.Second)

	timeline.AppendLocal(local)
	timeline.AppendRemote(other)
	timeline.AppendRemote(local)
	// A second echo is no longer pending
	timeline.AppendRemote(local)

	req.Equal([]domain.Message{local, other, local}, timeline.Messages("general"))
}

func TestTimeline_MessagesReturnsACopy(t *testing.T) {
	req := require.New(t)
	timeline, _ := newTimeline()
	timeline.Append(message("m1", "Alice", 0))

	msgs := timeline.Messages("general")
	msgs[0].Content = "changed"

	req.Equal("content m1", timeline.Messages("general")[0].Content)
}

func TestTimeline_Seed(t *testing.T) {
	req := require.New(t)
	timeline, latest := newTimeline()

	timeline.Seed("random", []domain.Message{message("m1", "Bot", 0), message("m2", "John", time.Minute)})
	timeline.Seed("random", nil)

	req.Equal(2, timeline.Len("random"))
	req.Equal("random", timeline.Messages("random")[1].ChannelID)
	req.Equal(1, latest.Count())
}

func TestGroupForDisplay_SplitsOnAuthorChange(t *testing.T) {
	req := require.New(t)
	messages := []domain.Message{
		message("1", "A", 0),
		message("2", "A", 60*time.Second),
		message("3", "A", 200*time.Second),
		message("4", "B", 210*time.Second),
	}

	var groups []Group
	for g := range GroupForDisplay(messages) {
		groups = append(groups, g)
	}

	req.Len(groups, 2)
	req.Equal("A", groups[0].Author.Username)
	req.Equal(messages[:3], groups[0].Messages)
	req.Equal("1", groups[0].ID)
	req.Equal(t0, groups[0].Timestamp)
	req.Equal(messages[3:], groups[1].Messages)
}

func TestGroupForDisplay_SplitsWhenGapExceedsWindow(t *testing.T) {
	req := require.New(t)
	timeline, _ := newTimeline()
	timeline.Append(message("1", "A", 0))
	timeline.Append(message("2", "A", 310*time.Second))

	groups := timeline.Groups("general")

	req.Len(groups, 2)
}

func TestGroupForDisplay_WindowIsMeasuredFromGroupStart(t *testing.T) {
	req := require.New(t)
	messages := []domain.Message{
		message("1", "A", 0),
		message("2", "A", 4*time.Minute),
		message("3", "A", 5*time.Minute),
		message("4", "A", 6*time.Minute),
	}

	var sizes []int
	for g := range GroupForDisplay(messages) {
		sizes = append(sizes, len(g.Messages))
	}

	// Exactly five minutes still joins, six minutes starts a new group
	req.Equal([]int{3, 1}, sizes)
}

func TestGroupForDisplay_ExactWindowJoins(t *testing.T) {
	req := require.New(t)
	count := func(messages ...domain.Message) int {
		n := 0
		for range GroupForDisplay(messages) {
			n++
		}
		return n
	}

	// A gap of exactly 300000 ms joins, one millisecond more splits
	req.Equal(1, count(message("1", "A", 0), message("2", "A", 300000*time.Millisecond)))
	req.Equal(2, count(message("1", "A", 0), message("2", "A", 300001*time.Millisecond)))
}

func TestGroupForDisplay_IsRestartableAndStopsEarly(t *testing.T) {
	req := require.New(t)
	messages := []domain.Message{message("1", "A", 0), message("2", "B", 0), message("3", "C", 0)}
	seq := GroupForDisplay(messages)

	count := 0
	for range seq {
		count++
		break
	}
	req.Equal(1, count)

	count = 0
	for range seq {
		count++
	}
	req.Equal(3, count)

	for range GroupForDisplay(nil) {
		req.Fail("no group expected for an empty log")
	}
}
