package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mediafilter/internal/adapters/driving/inbox"
	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

func TestInboxWatchCmd_Use(t *testing.T) {
	assert.Equal(t, "watch <dir>", inboxWatchCmd.Use)
	assert.Contains(t, inboxWatchCmd.Long, ".imported")

	f := inboxWatchCmd.Flags().Lookup("settle")
	require.NotNil(t, f)
	assert.Equal(t, inbox.DefaultSettle.String(), f.DefValue)
}

func TestInboxWatchCmd_MissingDir(t *testing.T) {
	cleanup := setupServices(&mockMediaFilterService{}, &mockItemService{}, nil, nil)
	defer cleanup()

	_, err := executeCommand(t, "inbox", "watch", "/nonexistent/inbox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inbox path error")
}

func TestInboxWatchCmd_ServiceNotConfigured(t *testing.T) {
	cleanup := setupServices(nil, nil, nil, nil)
	defer cleanup()

	_, err := executeCommand(t, "inbox", "watch", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item service not configured")
}

func TestPrintOutcome(t *testing.T) {
	buf := new(bytes.Buffer)
	cmd := inboxWatchCmd
	cmd.SetOut(buf)
	defer cmd.SetOut(nil)

	printOutcome(cmd, inbox.Outcome{
		Arrival: inbox.Arrival{Name: "a.pdf"},
		Item:    &domain.Item{Handle: "local/1"},
		Report: &domain.RunReport{ItemsProcessed: 1, Results: []domain.BitstreamResult{
			{State: domain.StatePostProcessed, DerivedID: "d"},
		}},
	})
	printOutcome(cmd, inbox.Outcome{
		Arrival: inbox.Arrival{Name: "b.bin"},
		Err:     errors.New("import b.bin: boom"),
	})

	out := buf.String()
	assert.Contains(t, out, "a.pdf -> local/1 (1 derived, 0 skipped, 0 failed)")
	assert.Contains(t, out, "b.bin: import b.bin: boom")
}
