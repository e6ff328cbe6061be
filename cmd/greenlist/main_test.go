package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenlist/internal/linkguard"
)

func run(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestSanitizeCommand(t *testing.T) {
	out, stderr, err := run(t,
		"Email info@https://dal.ca and see https://github.com/org/repo today.",
		"sanitize", "--no-probe", "--trace")
	require.NoError(t, err)

	assert.Equal(t, "Email info@dal.ca and see  today.", out)

	var decisions []linkguard.Decision
	require.NoError(t, json.Unmarshal([]byte(stderr), &decisions))
	require.Len(t, decisions, 1)
	assert.Equal(t, "https://rppa-appr.ca/en/summary", decisions[0].Raw)
	assert.Equal(t, linkguard.ActionStripDisallowed, decisions[0].Action)
}

func TestSanitizeCommandStripsDisallowed(t *testing.T) {
	out, _, err := run(t, "Read https://example.com/post now.", "sanitize", "--no-probe")
	require.NoError(t, err)
	assert.Equal(t, "Read  now.", out)
}

func TestSanitizeCommandBadPolicy(t *testing.T) {
	_, _, err := run(t, "x", "sanitize", "--policy", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPolicyCheck(t *testing.T) {
	out, _, err := run(t, "", "policy", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "policy ok: approved=8")

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("whitelist: [dal.ca]\nfallbacks:\n  dal.ca: https://example.com\n"), 0o600))
	_, _, err = run(t, "", "policy", "check", path)
	assert.Error(t, err)
}
