// Package server serves a river network over a small read-only HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/nadi-hydro/nadi/internal/network"
)

// Config holds configuration for the server.
type Config struct {
	Path     string // connection or graphviz file
	NodesDir string // attribute directory, defaults to <dir of Path>/nodes
	Addr     string // listen address, e.g. ":8080"
	Watch    bool
	Logger   *slog.Logger
}

// Server serves the network loaded from Config.Path.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	notifier *Notifier

	mu  sync.RWMutex
	net *network.Network
}

// New loads the network and creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.NodesDir == "" {
		cfg.NodesDir = filepath.Join(filepath.Dir(cfg.Path), network.DefaultNodesDir)
	}
	s := &Server{cfg: cfg, logger: cfg.Logger, notifier: NewNotifier()}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Network returns the currently served network.
func (s *Server) Network() *network.Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.net
}

// Notifier returns the reload notifier.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Reload loads the network again and swaps it in. On error the previous
// network stays in place.
func (s *Server) Reload() error {
	net, err := network.Load(s.cfg.Path, network.LoadOptions{NodesDir: s.cfg.NodesDir, Logger: s.logger})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.net = net
	s.mu.Unlock()
	s.notifier.Broadcast()
	return nil
}

// Serve starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting server", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.Watch {
		eg.Go(func() error {
			return s.watchFiles(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchFiles reloads the network when the connection file or an attribute file changes.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(s.cfg.Path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.cfg.Path, err)
	}
	if err := watchDirRecursive(watcher, s.cfg.NodesDir); err != nil {
		s.logger.Warn("failed to watch nodes directory", "dir", s.cfg.NodesDir, "error", err)
	}

	pathAbs, _ := filepath.Abs(s.cfg.Path)
	nodesAbs, _ := filepath.Abs(s.cfg.NodesDir)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name, _ := filepath.Abs(event.Name)
			if name != pathAbs && !isWithin(name, nodesAbs) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("file changed, reloading", "file", event.Name)
				if err := s.Reload(); err != nil {
					s.logger.Error("reload failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		s.logRequests,
	)

	r.Get("/healthz", s.handleHealth)
	r.Get("/network", s.handleNetwork)
	r.Get("/network.dot", s.handleDOT)
	r.Get("/network.txt", s.handleASCII)
	r.Get("/nodes/{name}", s.handleNode)
	r.Get("/events", s.handleEvents)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
