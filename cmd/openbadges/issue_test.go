package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bakedLine = regexp.MustCompile(`✅ Badge baked to (\S+)`)

func issuedPath(t *testing.T, output string) string {
	t.Helper()
	m := bakedLine.FindStringSubmatch(output)
	require.Len(t, m, 2, output)
	return m[1]
}

func TestRunIssue_DynamicInputs(t *testing.T) {
	ws := setupWorkspace(t)
	outDir := filepath.Join(ws.dir, "out")

	var out bytes.Buffer
	err := runIssue(context.Background(), []string{
		"--badge_id", "foo",
		"--recipient_email=ada@example.com",
		"--course_name", "Go 101",
		"--output_dir", outDir,
	}, &out)
	require.NoError(t, err)

	path := issuedPath(t, out.String())
	assert.Equal(t, outDir, filepath.Dir(path))
	assert.Contains(t, out.String(), "course_name = Go 101")
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestRunIssue_MissingRequiredInput(t *testing.T) {
	ws := setupWorkspace(t)

	err := runIssue(context.Background(), []string{
		"--badge_id=foo",
		"--recipient_email=ada@example.com",
		"--output_dir", ws.dir,
	}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, badge.ErrCodeMissingRequiredInput, badge.GetErrorCode(err))
	assert.Contains(t, err.Error(), "course_name")
}

func TestRunIssue_UnknownInputFlag(t *testing.T) {
	setupWorkspace(t)

	err := runIssue(context.Background(), []string{
		"--badge_id=bar",
		"--recipient_email=ada@example.com",
		"--course_name=Go",
	}, &bytes.Buffer{})
	assert.Equal(t, badge.ErrCodeUnknownInput, badge.GetErrorCode(err))
}

func TestRunIssue_InvalidDate(t *testing.T) {
	ws := setupWorkspace(t)

	err := runIssue(context.Background(), []string{
		"--badge_id=bar",
		"--recipient_email=ada@example.com",
		"--expires=tomorrow",
		"--output_dir=" + ws.dir,
	}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, badge.ErrCodeInvalidDateFormat, badge.GetErrorCode(err))
	assert.Contains(t, err.Error(), "tomorrow")
}

func TestRunIssue_MissingBadgeID(t *testing.T) {
	setupWorkspace(t)
	err := runIssue(context.Background(), []string{"--recipient_email=ada@example.com"}, &bytes.Buffer{})
	assert.Equal(t, badge.ErrCodeMissingRequiredInput, badge.GetErrorCode(err))
}

func TestRunIssue_UnknownBadge(t *testing.T) {
	setupWorkspace(t)
	err := runIssue(context.Background(), []string{"--badge_id=nope", "--recipient_email=a@b.c"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, badge.ErrConfigLookup)
}

func TestRunIssue_MissingSalt(t *testing.T) {
	ws := setupWorkspace(t)
	settings.RecipientSalt = ""
	require.NoError(t, os.Unsetenv("RECIPIENT_SALT"))

	err := runIssue(context.Background(), []string{
		"--badge_id=bar",
		"--recipient_email=ada@example.com",
		"--output_dir=" + ws.dir,
	}, &bytes.Buffer{})
	assert.Equal(t, badge.ErrCodeMissingSecret, badge.GetErrorCode(err))
}

func TestRunIssue_FormatFlag(t *testing.T) {
	ws := setupWorkspace(t)

	var out bytes.Buffer
	err := runIssue(context.Background(), []string{
		"--badge_id=bar",
		"--recipient_email=ada@example.com",
		"--format=ob2",
		"--output_dir=" + ws.dir,
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "(ob2)")

	err = runIssue(context.Background(), []string{
		"--badge_id=bar",
		"--recipient_email=ada@example.com",
		"--format=ob5",
	}, &bytes.Buffer{})
	assert.Equal(t, badge.ErrCodeConfiguration, badge.GetErrorCode(err))
}

func TestRunIssue_Help(t *testing.T) {
	setupWorkspace(t)
	var help bytes.Buffer
	issueCmd.SetOut(&help)
	t.Cleanup(func() { issueCmd.SetOut(nil) })

	var out bytes.Buffer
	require.NoError(t, runIssue(context.Background(), []string{"--help"}, &out))
	assert.Contains(t, help.String(), "Fixed flags:")
	assert.Empty(t, out.String())
}
