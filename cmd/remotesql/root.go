package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dan-strohschein/remotedb/client"
	"github.com/dan-strohschein/remotedb/config"
	"github.com/dan-strohschein/remotedb/service"
	"github.com/dan-strohschein/remotedb/service/framed"
	"github.com/dan-strohschein/remotedb/service/grpcservice"
	"github.com/dan-strohschein/remotedb/transport/tcp"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configFile    string
	address       string
	configuration string
	transport     string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "remotesql",
		Short: "Render and run statement plans on a remote query executor",
		Long: `remotesql resolves a remote configuration, renders statement plans with the
configuration's SQL dialect and sends them to the executor over gRPC or framed TCP.

Settings come from --config, then REMOTEDB_ADDRESS and REMOTEDB_CONFIGURATION,
then the command-line flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "path to a TOML config file")
	pf.StringVar(&g.address, "address", "", "executor address, host:port")
	pf.StringVar(&g.configuration, "configuration", "", "configuration name (empty selects the default)")
	pf.StringVar(&g.transport, "transport", "", "transport: grpc or tcp")

	root.AddCommand(
		newInfoCmd(g),
		newRenderCmd(g),
		newExecCmd(g),
		newScalarCmd(g),
		newQueryCmd(g),
		newVersionCmd(),
	)
	return root
}

// loadConfig layers the config file, the environment and the flags that were
// set on cmd.
func (g *globalFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	conf := config.NewConfig()
	if g.configFile != "" {
		if err := conf.Load(g.configFile); err != nil {
			return nil, err
		}
	}
	conf.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("address") {
		conf.Service.Address = g.address
	}
	if flags.Changed("configuration") {
		conf.Client.Configuration = g.configuration
	}
	if flags.Changed("transport") {
		conf.Service.Transport = g.transport
	}

	if err := conf.Valid(); err != nil {
		return nil, err
	}
	return conf, nil
}

// session is an open client plus the command context bounded by the
// configured timeout.
type session struct {
	client *client.Client
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *session) Close() error {
	s.cancel()
	return s.client.Close()
}

func (g *globalFlags) open(cmd *cobra.Command) (*session, error) {
	conf, err := g.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	timeout, err := conf.Service.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	factory, release, err := serviceFactory(conf, timeout)
	if err != nil {
		return nil, err
	}

	c, err := client.NewClient(&client.ClientOptions{
		Configuration:   conf.Client.Configuration,
		ContextIDPrefix: conf.Client.ContextIDPrefix,
		ServiceFactory:  factory,
		Logger:          client.NewLogger(conf.Client.LogLevel, cmd.ErrOrStderr()),
		DebugMode:       conf.Client.Debug,
	})
	if err != nil {
		release()
		return nil, err
	}
	c.OnClosing(func() {
		if err := release(); err != nil {
			printWarning(cmd.ErrOrStderr(), fmt.Sprintf("closing transport: %v", err))
		}
	})

	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(cmd.Context(), timeout)
	} else {
		ctx, cancel = context.WithCancel(cmd.Context())
	}
	return &session{client: c, ctx: ctx, cancel: cancel}, nil
}

// serviceFactory connects the configured transport. The returned release
// function closes it.
func serviceFactory(conf *config.Config, timeout time.Duration) (service.Factory, func() error, error) {
	sec := conf.Service.Security

	switch conf.Service.Transport {
	case config.TransportTCP:
		tr, err := tcp.NewTCPTransport(tcp.TCPTransportOptions{
			Address:    conf.Service.Address,
			Timeout:    timeout,
			UseTLS:     sec.TLS,
			CertPath:   sec.SSLCert,
			KeyPath:    sec.SSLKey,
			SkipVerify: sec.SkipVerify,
			PoolSize:   conf.Service.PoolSize,
		})
		if err != nil {
			return nil, nil, err
		}
		return framed.SharedFactory(tr, nil), tr.Close, nil
	default:
		conn, err := grpcservice.Dial(grpcservice.Options{
			Address:            conf.Service.Address,
			TLS:                sec.TLS,
			CAFile:             sec.SSLCA,
			CertFile:           sec.SSLCert,
			KeyFile:            sec.SSLKey,
			InsecureSkipVerify: sec.SkipVerify,
		})
		if err != nil {
			return nil, nil, err
		}
		return grpcservice.SharedFactory(conn, nil), conn.Close, nil
	}
}

// formatErr renders err the way the client's debug mode asks for.
func formatErr(c *client.Client, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s", c.FormatErrorMessage(err))
}
