package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testProvisioning = `services:
  - id: poll
    type: POLL
    address: https://example.test/poll
    max_result_size: 2
  - id: inbox
    type: INBOX
    address: https://example.test/inbox
    destination_collection_required: true
  - id: mgmt
    type: COLLECTION_MANAGEMENT

collections:
  - name: feed
    supported_content:
      - binding_id: stix
    services: [poll, inbox, mgmt]
  - name: private
    accept_all_content: true
    services: [poll, mgmt]

accounts:
  - username: alice
    permissions:
      feed: modify
`

// writeFile writes content under a fresh temp dir and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// provisionedOptions returns root options pointing at a freshly provisioned
// database.
func provisionedOptions(t *testing.T) *RootOptions {
	t.Helper()
	opts := &RootOptions{
		Format:   "text",
		Database: filepath.Join(t.TempDir(), "taxii.db"),
		LogLevel: "error",
	}
	_, err := execute(t, NewProvisionCommand(opts), writeFile(t, "provision.yaml", testProvisioning))
	require.NoError(t, err)
	return opts
}

// execute runs cmd with args and returns what it wrote to stdout. Stderr is
// discarded.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// executeStdin is execute with stdin set to in.
func executeStdin(t *testing.T, cmd *cobra.Command, in string, args ...string) (string, error) {
	t.Helper()
	cmd.SetIn(bytes.NewBufferString(in))
	return execute(t, cmd, args...)
}
