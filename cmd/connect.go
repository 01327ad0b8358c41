// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/guacd/gcore/client"
	"github.com/guacd/gcore/confengine"
	"github.com/guacd/gcore/internal/pubsub"
	"github.com/guacd/gcore/internal/sigs"
	"github.com/guacd/gcore/logger"
	"github.com/guacd/gcore/server"
	"github.com/guacd/gcore/tunnel"
	"github.com/guacd/gcore/tunnel/chained"
	"github.com/guacd/gcore/tunnel/httptunnel"
	"github.com/guacd/gcore/tunnel/ws"
)

// wsConfig is the "tunnel.ws" section.
type wsConfig struct {
	URL string `config:"url"`
}

// httpTunnelConfig is the "tunnel.http" section. BaseURL is the single
// "U" spec.md §6 builds "U?connect"/"U?read:UUID"/"U?write:UUID" from.
type httpTunnelConfig struct {
	BaseURL string        `config:"baseUrl"`
	Timeout time.Duration `config:"timeout"`
}

// tunnelConfig selects and configures the tunnel variant a connection
// uses. Mode "chained" tries ws first and falls back to http, matching
// the upstream JavaScript client's default ChainedTunnel behavior.
type tunnelConfig struct {
	Mode   string            `config:"mode"`
	Header map[string]string `config:"header"`
	WS     wsConfig          `config:"ws"`
	HTTP   httpTunnelConfig  `config:"http"`
}

func (c tunnelConfig) httpHeader() http.Header {
	header := make(http.Header, len(c.Header))
	for k, v := range c.Header {
		header.Set(k, v)
	}
	return header
}

// handshakeConfig is the YAML shape for client.HandshakeOptions.
type handshakeConfig struct {
	Protocol       string            `config:"protocol"`
	Width          int64             `config:"width"`
	Height         int64             `config:"height"`
	DPI            int64             `config:"dpi"`
	AudioMimetypes []string          `config:"audioMimetypes"`
	VideoMimetypes []string          `config:"videoMimetypes"`
	ImageMimetypes []string          `config:"imageMimetypes"`
	Timezone       string            `config:"timezone"`
	Params         map[string]string `config:"params"`
}

func (c handshakeConfig) options() client.HandshakeOptions {
	return client.HandshakeOptions{
		Protocol:       c.Protocol,
		Width:          c.Width,
		Height:         c.Height,
		DPI:            c.DPI,
		AudioMimetypes: c.AudioMimetypes,
		VideoMimetypes: c.VideoMimetypes,
		ImageMimetypes: c.ImageMimetypes,
		Timezone:       c.Timezone,
		Params:         c.Params,
	}
}

// buildTunnel constructs the tunnel variant named by conf's "tunnel"
// section, wiring sink as a tunnel.LazySink that the caller Binds once
// the client.Client that will consume it exists.
func buildTunnel(conf *confengine.Config, sink *tunnel.LazySink) (tunnel.Tunnel, error) {
	var tc tunnelConfig
	if err := conf.UnpackChild("tunnel", &tc); err != nil {
		return nil, fmt.Errorf("failed to unpack tunnel config: %w", err)
	}

	header := tc.httpHeader()

	switch tc.Mode {
	case "ws":
		return ws.New(tc.WS.URL, header, sink), nil
	case "http":
		httpClient := &http.Client{Timeout: tc.HTTP.Timeout}
		return httptunnel.New(tc.HTTP.BaseURL, header, httpClient, sink), nil
	case "chained", "":
		wsTunnel := ws.New(tc.WS.URL, header, sink)
		httpClient := &http.Client{Timeout: tc.HTTP.Timeout}
		httpTunnel := httptunnel.New(tc.HTTP.BaseURL, header, httpClient, sink)
		return chained.New(sink, wsTunnel, httpTunnel), nil
	default:
		return nil, fmt.Errorf("unknown tunnel mode %q", tc.Mode)
	}
}

var connectConfigPath string

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open a Guacamole connection and log its events until disconnected",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runConnect(connectConfigPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
	Example: "# guacctl connect --config guacctl.yaml",
}

func init() {
	connectCmd.Flags().StringVar(&connectConfigPath, "config", "guacctl.yaml", "Configuration file path")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(configPath string) error {
	conf, err := confengine.LoadConfigPath(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var loggerOpt logger.Options
	if conf.Has("logger") {
		if err := conf.UnpackChild("logger", &loggerOpt); err != nil {
			return fmt.Errorf("failed to unpack logger config: %w", err)
		}
		logger.SetOptions(loggerOpt)
	}

	srv, err := server.New(conf)
	if err != nil {
		return fmt.Errorf("failed to create admin server: %w", err)
	}
	if srv != nil {
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				logger.Errorf("admin server stopped: %v", err)
			}
		}()
	}

	var hc handshakeConfig
	if err := conf.UnpackChild("handshake", &hc); err != nil {
		return fmt.Errorf("failed to unpack handshake config: %w", err)
	}

	var lazy tunnel.LazySink
	tun, err := buildTunnel(conf, &lazy)
	if err != nil {
		return err
	}

	c := client.New(tun, client.Sinks{
		Display:    loggingDisplaySink{},
		Connection: loggingConnectionSink{},
	})
	lazy.Bind(c)

	events := c.Subscribe(32)
	defer c.Unsubscribe(events)
	go logEvents(events)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Connect(ctx, hc.options()); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	logger.Infof("connecting to protocol %q", hc.Protocol)

	poll := time.NewTicker(time.Second)
	defer poll.Stop()
	for {
		select {
		case <-sigs.Terminate():
			logger.Infof("shutting down")
			return c.Disconnect()

		case <-sigs.Reload():
			// A live Guacamole connection has nothing analogous to the
			// agent's config reload - the handshake already ran and the
			// tunnel is fixed for the life of the connection. Reload
			// only takes effect on the next `connect` invocation.
			logger.Infof("reload has no effect on an active connection")

		case <-poll.C:
			if c.State() == client.StateDisconnected {
				return nil
			}
		}
	}
}

func logEvents(events pubsub.Queue) {
	for {
		v, ok := events.PopTimeout(time.Second)
		if !ok {
			continue
		}
		ev, ok := v.(client.Event)
		if !ok {
			continue
		}
		switch ev.Kind {
		case client.EventStateChange:
			logger.Infof("state -> %s", ev.State)
		case client.EventUUID:
			logger.Infof("assigned uuid %s", ev.UUID)
		case client.EventRequired:
			logger.Infof("server requires additional parameters: %v", ev.Params)
		case client.EventName:
			logger.Infof("connection name: %s", ev.Name)
		case client.EventError:
			logger.Errorf("connection error: %s", ev.Status.Error())
		}
	}
}
