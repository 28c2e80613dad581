package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in     string
		expect Level
		ok     bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"", LevelInfo, true},
		{"warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"trace", LevelInfo, false},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			l, err := ParseLevel(tc.in)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
			require.Equal(t, tc.expect, l)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetLevel(LevelInfo)

	SetLevel(LevelError)
	Info("hidden", "k", 1)
	require.Empty(t, buf.String())

	Error("visible", errors.New("boom"), "pin", 22, "dangling")
	out := buf.String()
	require.Contains(t, out, "visible")
	require.Contains(t, out, "pin=22")
	require.Contains(t, out, "error=boom")
	require.NotContains(t, out, "dangling")
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetLevel(LevelInfo)

	SetLevel(LevelDebug)
	l := CronLogger()
	l.Info("schedule", "entry", 1)
	l.Error(errors.New("late"), "run")
	out := buf.String()
	require.Contains(t, out, "cron: schedule")
	require.Contains(t, out, "cron: run")
	require.Contains(t, out, "error=late")
}
