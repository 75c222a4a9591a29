package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mosaicnetworks/nodekit/src/config"
	"github.com/mosaicnetworks/nodekit/src/net"
	"github.com/mosaicnetworks/nodekit/src/service"
	"github.com/mosaicnetworks/nodekit/src/telemetry"
	"github.com/mosaicnetworks/nodekit/src/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runner is what the protocol commands run. Every node.Node satisfies it.
type runner interface {
	service.Node
	Run(ctx context.Context) error
}

type buildFunc func(conf *config.Config, trans net.Transport) runner

func newProtocolCmd(use, short string, build buildFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(build)
		},
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runNode(build buildFunc) error {
	logger := _config.Logger()

	telemetry.SetBuildInfo(version.Version, version.GitCommit)

	trans := net.NewStreamTransport(os.Stdin, os.Stdout, _config.QueueSize, logger)

	n := build(_config, trans)

	if !_config.NoService {
		s := service.NewService(_config.ServiceAddr, n, logger)
		go s.Serve()
		defer s.Shutdown(time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.Run(ctx); err != nil {
		logger.WithError(err).Error("Node stopped")
		return err
	}

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the protocol commands
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Directory searched for nodekit.toml")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write logs to this file")

	// Ingestion
	cmd.Flags().Int("queue-size", _config.QueueSize, "Envelopes buffered between the reader and the dispatcher")
	cmd.Flags().Duration("shutdown-timeout", _config.ShutdownTimeout, "Time given to in-flight handlers at shutdown")

	// Retries
	cmd.Flags().Duration("retry-interval", _config.RetryInterval, "Delay before resending an unacknowledged request")
	cmd.Flags().Float64("retry-multiplier", _config.RetryMultiplier, "Growth factor of the resend delay")
	cmd.Flags().Duration("retry-max-interval", _config.RetryMaxInterval, "Cap on the resend delay (0 for none)")
	cmd.Flags().Int("retry-max-attempts", _config.RetryMaxAttempts, "Sends per request before giving up (0 for never)")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// the config file may have changed the level after the logger was built
	_config.Logger().Logger.SetLevel(config.LogLevel(_config.LogLevel))

	_config.Logger().WithFields(logrus.Fields{
		"DataDir":          _config.DataDir,
		"LogLevel":         _config.LogLevel,
		"LogFile":          _config.LogFile,
		"QueueSize":        _config.QueueSize,
		"RetryInterval":    _config.RetryInterval,
		"RetryMultiplier":  _config.RetryMultiplier,
		"RetryMaxInterval": _config.RetryMaxInterval,
		"RetryMaxAttempts": _config.RetryMaxAttempts,
		"ShutdownTimeout":  _config.ShutdownTimeout,
		"NoService":        _config.NoService,
		"ServiceAddr":      _config.ServiceAddr,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// NODEKIT_QUEUE_SIZE overrides queue-size, and so on
	viper.SetEnvPrefix("nodekit")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/nodekit.toml (.json, .yaml also work)
	viper.SetConfigName("nodekit")       // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
