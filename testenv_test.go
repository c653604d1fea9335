package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/testenv/test"
)

func TestBuildLoggerLevels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"DEBUG", logrus.DebugLevel},
		{"notice", logrus.InfoLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"xyz123", logrus.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			t.Parallel()
			logger := buildLogger(tc.level, "text")
			assert.Equal(t, tc.expected, logger.GetLevel())
		})
	}
}

func TestBuildLoggerJSON(t *testing.T) {
	t.Parallel()

	logger := buildLogger("info", "json")
	_, ok := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestParserRegistersCommands(t *testing.T) {
	t.Parallel()

	parser := newParser(test.NewTestLogger(), "")
	for _, name := range []string{"up", "validate", "doctor", "prune"} {
		assert.NotNil(t, parser.Find(name), name)
	}
}

func TestParserParsesPruneFlags(t *testing.T) {
	t.Parallel()

	parser := newParser(test.NewTestLogger(), "")
	prune := parser.Find("prune")
	require.NotNil(t, prune)
	opt := prune.FindOptionByLongName("session")
	require.NotNil(t, opt)
	yes := prune.FindOptionByShortName('y')
	require.NotNil(t, yes)
	assert.Equal(t, "yes", yes.LongName)
}

func TestParserAcceptsLogFormat(t *testing.T) {
	t.Parallel()

	parser := newParser(test.NewTestLogger(), "")
	opt := parser.FindOptionByLongName("log-format")
	require.NotNil(t, opt)
}
