package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallerID(t *testing.T) {
	require.Equal(t, "alice", Options{UserID: "alice", ClientID: "web"}.callerID())
	require.Equal(t, "web", Options{ClientID: "web"}.callerID())
	require.Equal(t, "anonymous", Options{}.callerID())
}

func TestContextVariablesMapping(t *testing.T) {
	vars := Options{
		ClientID:  "web",
		UserQuery: "summarize my day",
		ExtraData: map[string]any{"locale": "en", "shared": "extra"},
		Variables: map[string]any{"shared": "explicit", "topic": "news"},
	}.contextVariables()

	require.Equal(t, "web", vars["user_id"], "client_id fills user_id when absent")
	require.Equal(t, "web", vars["client_id"])
	require.Equal(t, "summarize my day", vars["user_query"])
	require.Equal(t, "en", vars["locale"])
	require.Equal(t, "explicit", vars["shared"], "explicit variables win over extra_data")
	require.Equal(t, "news", vars["topic"])

	explicit := Options{UserID: "alice", ClientID: "web"}.contextVariables()
	require.Equal(t, "alice", explicit["user_id"], "explicit user id is not overridden")
}

func TestStatusTerminal(t *testing.T) {
	require.False(t, StatusQueued.terminal())
	require.False(t, StatusRunning.terminal())
	require.True(t, StatusCompleted.terminal())
	require.True(t, StatusFailed.terminal())
	require.True(t, StatusCancelled.terminal())
}
