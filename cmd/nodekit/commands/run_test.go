package commands

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mosaicnetworks/nodekit/src/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "nodekit")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	toml := []byte("queue-size = 3\nretry-interval = \"250ms\"\nlog = \"error\"\n")
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "nodekit.toml"), toml, 0644))

	viper.Reset()
	_config = config.NewDefaultConfig()
	defer func() { _config = config.NewDefaultConfig() }()

	cmd := NewBroadcastCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--datadir", dir,
		"--retry-max-attempts", "5",
	}))

	require.NoError(t, loadConfig(cmd, nil))

	require.Equal(t, dir, _config.DataDir)
	require.Equal(t, 3, _config.QueueSize)
	require.Equal(t, 250*time.Millisecond, _config.RetryInterval)
	require.Equal(t, 5, _config.RetryMaxAttempts)
	require.Equal(t, "error", _config.LogLevel)
	require.True(t, _config.NoService)
}
