// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Server exposes the registry on a dedicated listener so the metrics
// endpoint never shares a port with the API.
type Server struct {
	registry *prometheus.Registry
	host     string
	port     int
}

func NewServer(registry *prometheus.Registry, host string, port int) *Server {
	return &Server{
		registry: registry,
		host:     host,
		port:     port,
	}
}

func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Starting metrics server")
	return srv.ListenAndServe()
}
