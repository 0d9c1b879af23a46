// If you are AI: This file implements the process lifecycle: construct
// channel publishers per the config's channel declarations, start one RTP
// ingest loop per source, launch configured relay tasks, and serve the
// health/preview/WS-preview/API HTTP routes, grounded on the teacher's
// internal/server/server.go Server struct shape (one long-lived struct
// owning every subsystem, New/Start/Shutdown).

package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"videopipe/internal/channel"
	"videopipe/internal/config"
	"videopipe/internal/fanout"
	"videopipe/internal/metrics"
	"videopipe/internal/registry"
	"videopipe/internal/rtpserver"
	"videopipe/internal/svc/api"
	"videopipe/internal/svc/health"
	"videopipe/internal/svc/preview"
	"videopipe/internal/svc/relay"
	"videopipe/internal/svc/wspreview"
)

// Server wraps the HTTP server and every channel publisher/RTP source/
// relay task this process owns.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	healthSvc  *health.Service
	previewSvc *preview.Service
	wspreview  *wspreview.Service
	apiSvc     *api.Service
	registry   *registry.Registry
	relayMgr   *relay.Manager
	publishers []*channel.Publisher
	sources    []*rtpserver.Source
}

// New creates a new server instance with the given configuration. The
// server is not started until Start is called.
func New(cfg *config.Config) *Server {
	metrics.Register()

	reg := registry.New()
	relayMgr := relay.NewManager(reg)

	mux := http.NewServeMux()

	healthSvc := health.New()
	healthSvc.RegisterRoutes(mux)

	previewSvc := preview.NewService()
	previewSvc.RegisterRoutes(mux)

	wspreviewSvc := wspreview.NewService()
	wspreviewSvc.RegisterRoutes(mux)

	apiSvc := api.NewService(reg, relayMgr)
	apiSvc.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.PreviewPort),
		Handler: mux,
	}

	return &Server{
		cfg:        cfg,
		httpServer: httpServer,
		healthSvc:  healthSvc,
		previewSvc: previewSvc,
		wspreview:  wspreviewSvc,
		apiSvc:     apiSvc,
		registry:   reg,
		relayMgr:   relayMgr,
	}
}

// Start creates the configured channel publishers, binds and launches one
// goroutine per RTP source, starts configured relay tasks, then serves
// HTTP (blocking) until Shutdown is called.
func (s *Server) Start() error {
	for _, cc := range s.cfg.Channels {
		if cc.Role != "publish" {
			continue
		}
		pub, err := channel.NewPublisher(cc.Name, cc.PublishInfo)
		if err != nil {
			return fmt.Errorf("server: create publisher %q: %w", cc.Name, err)
		}
		s.publishers = append(s.publishers, pub)
		if err := s.registry.Register(cc.Name, pub); err != nil {
			return fmt.Errorf("server: register publisher %q: %w", cc.Name, err)
		}
	}

	for _, sc := range s.cfg.Sources {
		pub := s.registry.Get(sc.Channel)
		if pub == nil {
			return fmt.Errorf("server: source %q references non-publishing channel %q", sc.Name, sc.Channel)
		}

		out := fanout.NewOutput(sc.Name)
		out.Publisher = pub
		if s.cfg.Output != nil {
			out.BaseDir = s.cfg.Output.BaseDir
			out.Fast = s.cfg.Output.Fast
			out.Test = s.cfg.Output.Test
			if out.BaseDir != "" {
				if err := out.EnableDirWatch(); err != nil {
					log.Printf("server: output %q: directory watch disabled: %v", sc.Name, err)
				}
			}
		}

		src := rtpserver.NewSource(sc.Name, sc.Codec, out)
		if err := src.Listen(sc.ListenUDP); err != nil {
			return err
		}
		s.sources = append(s.sources, src)

		go func(src *rtpserver.Source) {
			if err := src.Serve(); err != nil {
				log.Printf("server: source %q stopped: %v", src.Name, err)
			}
		}(src)
	}

	if err := s.relayMgr.StartTasks(s.cfg); err != nil {
		return fmt.Errorf("server: start relay tasks: %w", err)
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server with the given context and
// closes every relay task, RTP source, and channel publisher.
func (s *Server) Shutdown(ctx context.Context) error {
	s.relayMgr.Stop()
	for _, src := range s.sources {
		src.Close()
	}
	for _, pub := range s.publishers {
		pub.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

// ShutdownWithTimeout stops the server with a fixed 5-second timeout, a
// convenience wrapper around Shutdown.
func (s *Server) ShutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
