package messaging

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newPollingSession(api API, interval time.Duration) *Session {
	return NewSession(SessionConfig{
		API:          api,
		Credentials:  StaticCredentials("test-token"),
		PollInterval: interval,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not reached in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPollerRefreshesCurrentConversation(t *testing.T) {
	api := newFakeAPI()
	conv := api.seedConversation(10, 2, "hello")

	session := newPollingSession(api, 10*time.Millisecond)
	defer session.Close()
	require.NoError(t, session.Bootstrap(context.Background()))
	require.NoError(t, session.SelectConversation(context.Background(), conv.ID))

	op := fmt.Sprintf("messages:%d", conv.ID)
	after := api.callCount(op)
	waitFor(t, func() bool { return api.callCount(op) >= after+3 })

	// a message appended server-side shows up without any user action
	_, err := api.SendMessage(context.Background(), conv.ID, "from the other side", "text")
	require.NoError(t, err)
	waitFor(t, func() bool {
		msgs := session.Messages()
		return len(msgs) == 2 && msgs[1].Content == "from the other side"
	})
}

func TestPollerStopsWhenConversationCleared(t *testing.T) {
	api := newFakeAPI()
	conv := api.seedConversation(10, 2, "hello")

	session := newPollingSession(api, 10*time.Millisecond)
	defer session.Close()
	require.NoError(t, session.Bootstrap(context.Background()))
	require.NoError(t, session.SelectConversation(context.Background(), conv.ID))

	op := fmt.Sprintf("messages:%d", conv.ID)
	waitFor(t, func() bool { return api.callCount(op) >= 2 })

	// selecting an unknown id clears the selection and the timer with it
	require.NoError(t, session.SelectConversation(context.Background(), 9999))
	settled := api.callCount(op)
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, settled, api.callCount(op))
}

func TestPollerSwitchesConversations(t *testing.T) {
	api := newFakeAPI()
	convA := api.seedConversation(10, 2, "a")
	convB := api.seedConversation(11, 3, "b")

	session := newPollingSession(api, 10*time.Millisecond)
	defer session.Close()
	require.NoError(t, session.Bootstrap(context.Background()))
	require.NoError(t, session.SelectConversation(context.Background(), convA.ID))

	opA := fmt.Sprintf("messages:%d", convA.ID)
	opB := fmt.Sprintf("messages:%d", convB.ID)
	waitFor(t, func() bool { return api.callCount(opA) >= 2 })

	require.NoError(t, session.SelectConversation(context.Background(), convB.ID))
	settledA := api.callCount(opA)
	waitFor(t, func() bool { return api.callCount(opB) >= settledA+2 })

	// only the new conversation keeps refreshing
	require.LessOrEqual(t, api.callCount(opA), settledA+1)
}

func TestCloseStopsPolling(t *testing.T) {
	api := newFakeAPI()
	conv := api.seedConversation(10, 2, "hello")

	session := newPollingSession(api, 10*time.Millisecond)
	require.NoError(t, session.Bootstrap(context.Background()))
	require.NoError(t, session.SelectConversation(context.Background(), conv.ID))

	op := fmt.Sprintf("messages:%d", conv.ID)
	waitFor(t, func() bool { return api.callCount(op) >= 2 })

	session.Close()
	settled := api.callCount(op)
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, settled, api.callCount(op))
}
