package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxii/internal/store"
)

func seedInbox(t *testing.T, opts *RootOptions) {
	t.Helper()
	_, err := execute(t, NewDispatchCommand(opts), "--service", "inbox",
		writeFile(t, "inbox.json", inboxEnvelope))
	require.NoError(t, err)
}

func TestPurgeCommandWindow(t *testing.T) {
	opts := provisionedOptions(t)
	seedInbox(t, opts)

	out, err := execute(t, NewPurgeCommand(opts), "--collection", "feed", "--end", "2024-01-01T00:02:00Z")
	require.NoError(t, err)
	assert.Equal(t, "Purged 2 content blocks from feed\n", out)

	st, err := store.Open(opts.Database)
	require.NoError(t, err)
	defer st.Close()

	c, err := st.GetCollectionByName(context.Background(), "feed")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Volume)

	_, err = st.GetInboxMessage(context.Background(), 1)
	assert.NoError(t, err, "inbox message kept without --with-messages")
}

func TestPurgeCommandWithMessages(t *testing.T) {
	opts := provisionedOptions(t)
	seedInbox(t, opts)

	out, err := execute(t, NewPurgeCommand(opts), "--collection", "feed", "--with-messages")
	require.NoError(t, err)
	assert.Contains(t, out, "Purged 3 content blocks")

	st, err := store.Open(opts.Database)
	require.NoError(t, err)
	defer st.Close()

	_, err = st.GetInboxMessage(context.Background(), 1)
	assert.Error(t, err)
}

func TestPurgeCommandUnknownCollection(t *testing.T) {
	opts := provisionedOptions(t)

	out, err := execute(t, NewPurgeCommand(opts), "--collection", "absent")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestPurgeCommandInvalidWindow(t *testing.T) {
	opts := provisionedOptions(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad begin", []string{"--begin", "yesterday"}, "invalid --begin"},
		{"bad end", []string{"--end", "2024-13-01"}, "invalid --end"},
		{"inverted", []string{"--begin", "2024-02-01T00:00:00Z", "--end", "2024-01-01T00:00:00Z"}, "is after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--collection", "feed"}, tt.args...)
			_, err := execute(t, NewPurgeCommand(opts), args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseWindow(t *testing.T) {
	w, err := parseWindow("", "2024-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Nil(t, w.Begin)
	require.NotNil(t, w.End)
	assert.True(t, w.End.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}
