// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf})
	l.Info("hello", "k", "v")
	require.Contains(t, buf.String(), "hello")
	require.Contains(t, buf.String(), "k=v")
}

func TestWithComponentTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf})
	l.WithComponent("dhcp").Debug("starting")
	require.Contains(t, buf.String(), "component=dhcp")
}

func TestWithErrorAttachesErrorField(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf})
	l.WithError(errBoom).Error("failed")
	require.Contains(t, buf.String(), "boom")
}

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})
	l.Info("should not appear")
	require.Empty(t, buf.String())
	l.Warn("should appear")
	require.Contains(t, buf.String(), "should appear")
}

func TestDefaultIsSingleton(t *testing.T) {
	require.Same(t, Default(), Default())
}

var errBoom = boomErr{}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }
