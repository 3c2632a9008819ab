package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubcommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["crawl"])
}

func TestInitializeViperDefaults(t *testing.T) {
	v, err := initializeViper()
	require.NoError(t, err)

	assert.Equal(t, "info", v.GetString("logger.level"))
	assert.Equal(t, "output", v.GetString("output.directory"))
	assert.Equal(t, 100, v.GetInt("fetch.max_urls"))
}
