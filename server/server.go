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

// Package server is the optional admin/debug HTTP surface: Prometheus
// metrics, pprof, and a log-level control endpoint, all gated behind
// Config.Enabled so a library user embedding a Client need not run one.
package server

import (
	"io"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guacd/gcore/confengine"
	"github.com/guacd/gcore/logger"
)

// Config controls whether the admin server runs at all and, if so, on
// which address and with which optional routes enabled.
type Config struct {
	Enabled bool          `config:"enabled"`
	Address string        `config:"address"`
	Pprof   bool          `config:"pprof"`
	Metrics bool          `config:"metrics"`
	Timeout time.Duration `config:"timeout"`
}

// Server wraps a gorilla/mux router behind an *http.Server.
type Server struct {
	config Config
	router *mux.Router
	server *http.Server
}

// New builds a Server from the "server" section of conf. It returns a
// nil *Server (and a nil error) when that section's `enabled` is false,
// so callers must check for nil before using the result.
func New(conf *confengine.Config) (*Server, error) {
	var config Config
	if err := conf.UnpackChild("server", &config); err != nil {
		return nil, err
	}
	if !config.Enabled {
		return nil, nil
	}

	router := mux.NewRouter()
	s := &Server{
		config: config,
		router: router,
		server: &http.Server{
			Handler:      router,
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
		},
	}
	if config.Pprof {
		s.registerPprofRoutes()
	}
	if config.Metrics {
		s.RegisterGetRoute("/metrics", promhttp.Handler().ServeHTTP)
	}
	s.registerLoggerRoute()
	return s, nil
}

// ListenAndServe blocks serving the admin surface until the listener
// fails or the process exits.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	logger.Infof("admin server listening on %s", s.config.Address)
	return s.server.Serve(l)
}

// RegisterGetRoute adds a GET handler at path.
func (s *Server) RegisterGetRoute(path string, f http.HandlerFunc) {
	s.router.Methods(http.MethodGet).Path(path).HandlerFunc(f)
}

// RegisterPostRoute adds a POST handler at path.
func (s *Server) RegisterPostRoute(path string, f http.HandlerFunc) {
	s.router.Methods(http.MethodPost).Path(path).HandlerFunc(f)
}

func (s *Server) registerPprofRoutes() {
	s.RegisterGetRoute("/debug/pprof/cmdline", pprof.Cmdline)
	s.RegisterGetRoute("/debug/pprof/profile", pprof.Profile)
	s.RegisterGetRoute("/debug/pprof/symbol", pprof.Symbol)
	s.RegisterGetRoute("/debug/pprof/trace", pprof.Trace)
	s.RegisterGetRoute("/debug/pprof/{other}", pprof.Index)
}

// registerLoggerRoute exposes a POST /-/logger?level=debug endpoint that
// adjusts the package-level logger's level at runtime, without a
// restart - useful when diagnosing a misbehaving connection live.
func (s *Server) registerLoggerRoute() {
	s.RegisterPostRoute("/-/logger", func(w http.ResponseWriter, r *http.Request) {
		level := r.URL.Query().Get("level")
		if level == "" {
			http.Error(w, "missing level query parameter", http.StatusBadRequest)
			return
		}
		logger.SetLoggerLevel(level)
		_, _ = io.WriteString(w, "ok\n")
	})
}
