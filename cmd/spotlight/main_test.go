package main

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"serve", "scheduler", "all", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, cmd.Name())
	}

	down, _, err := root.Find([]string{"migrate", "down"})
	require.NoError(t, err)
	require.NotNil(t, down.Flags().Lookup("steps"))
}

func TestLoadConfigExportsFlags(t *testing.T) {
	viper.Reset()
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("DATABASE_TYPE", "postgres")

	root := newRootCommand()
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.NoError(t, serve.ParseFlags([]string{"--http-addr", ":9090", "--database-type", "sqlite"}))

	require.NoError(t, loadConfig(serve))
	require.Equal(t, ":9090", os.Getenv("HTTP_ADDR"))
	require.Equal(t, "sqlite", os.Getenv("DATABASE_TYPE"))
}
