package main

import (
	"bytes"
	"context"
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigPathPrecedence(t *testing.T) {
	t.Setenv("AUTOTRADER_CONFIG", "")
	assert.Equal(t, defaultConfigPath, configPath(""))

	t.Setenv("AUTOTRADER_CONFIG", "/etc/autotrader.yaml")
	assert.Equal(t, "/etc/autotrader.yaml", configPath(""))
	assert.Equal(t, "local.yaml", configPath(" local.yaml "))
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseDate("yesterday")
	assert.Error(t, err)
}

func TestRunWithoutCommandPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), nil, &out)
	assert.ErrorIs(t, err, flag.ErrHelp)
}
