package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, filepath.Join(dir, "Cxyz123.mp4"), outputPath(dir, "Cxyz123"))
	assert.Equal(t, filepath.Join("videos", "Cxyz123.mp4"), outputPath("videos/", "Cxyz123"))
	assert.Equal(t, filepath.Join(dir, "clip.mp4"), outputPath(filepath.Join(dir, "clip.mp4"), "Cxyz123"))
}

func TestGlobalFlagsOnlyChanged(t *testing.T) {
	defer func() {
		logLevel, logFormat, noDelay = "", "", false
	}()

	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "")

	assert.Empty(t, globalFlags(cmd))

	assert.NoError(t, cmd.Flags().Set("log-level", "debug"))
	noDelay = true
	flags := globalFlags(cmd)
	assert.Equal(t, "debug", flags["log-level"])
	assert.Equal(t, true, flags["no-delay"])
	_, ok := flags["log-format"]
	assert.False(t, ok)
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "fetch", "config", "session", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestConfigInitWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelgrab.yaml")
	configFile = path
	defer func() { configFile = "" }()

	require.NoError(t, runConfigInit(configInitCmd, nil))

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "strategies:")
	assert.Contains(t, string(data), "thirdparty")
}

func TestConfigInitRefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelgrab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0644))
	configFile = path
	defer func() { configFile = "" }()

	err := runConfigInit(configInitCmd, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	data, _ := os.ReadFile(path)
	assert.Contains(t, string(data), ":9000")
}

func TestRunnableCommandsReturnErrors(t *testing.T) {
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		for _, sub := range c.Commands() {
			if sub.Runnable() && sub.Name() != "version" && sub.Name() != "help" {
				assert.NotNil(t, sub.RunE, "%s should return its error to Execute", sub.CommandPath())
				assert.Nil(t, sub.Run, "%s should not exit on its own", sub.CommandPath())
			}
			walk(sub)
		}
	}
	walk(rootCmd)
	assert.True(t, rootCmd.SilenceErrors)
}

func TestFetchAndServeReturnConfigErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0644))
	configFile = path
	defer func() { configFile = "" }()

	err := runFetch(fetchCmd, []string{"https://www.instagram.com/reel/Cxyz123/"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")

	err = runServe(serveCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}
