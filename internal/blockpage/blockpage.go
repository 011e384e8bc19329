// Package blockpage serves the landing page browsers reach when a
// blocked domain resolves to the target IP of a generated hosts file.
package blockpage

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hostsmith/internal/logger"
)

var requestCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hostsmith_blockpage_requests_total",
		Help: "Total block page requests by requested host",
	},
	[]string{"host"},
)

func init() {
	prometheus.MustRegister(requestCounter)
}

var pageTemplate = template.Must(template.New("blockpage").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Blocked: {{.Host}}</title>
<style>
body { margin: 0; font-family: sans-serif; background: #1d1f21; color: #c5c8c6; }
main { max-width: 36em; margin: 18vh auto 0; padding: 0 1em; text-align: center; }
h1 { font-size: 1.4em; word-break: break-all; }
p { color: #969896; }
</style>
</head>
<body>
<main>
<h1>{{.Host}}</h1>
<p>This domain is blocked by the local hosts file.</p>
</main>
</body>
</html>
`))

// Server answers every request with the block page. When a www root is
// configured, files found there take precedence over the built-in page,
// so users can drop in their own landing page assets.
type Server struct {
	root string
	log  *logger.Logger
}

// New creates a Server. root may be empty, in which case only the
// built-in page is served.
func New(root string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{root: root, log: log}
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Timeout(10*time.Second))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", s.health)
	r.Handle("/*", http.HandlerFunc(s.serve))

	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.log.Info("Block page server listening on <%s>.", addr)

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	host := requestHost(r)
	requestCounter.WithLabelValues(host).Inc()
	s.log.Debug("Blocked request for <%s%s>.", host, r.URL.Path)

	if name, ok := s.lookup(r.URL.Path); ok {
		http.ServeFile(w, r, name)
		return
	}

	w.Header().Set("content-type", "text/html; charset=utf-8")
	_ = pageTemplate.Execute(w, struct{ Host string }{Host: host})
}

// lookup resolves a request path to a regular file under the www root.
// The leading slash plus path.Clean keeps the lookup inside the root.
func (s *Server) lookup(reqPath string) (string, bool) {
	if s.root == "" {
		return "", false
	}
	name := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+reqPath)))
	info, err := os.Stat(name)
	if err == nil && info.IsDir() {
		name = filepath.Join(name, "index.html")
		info, err = os.Stat(name)
	}
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return name, true
}

func requestHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.Host); err == nil {
		return host
	}
	return r.Host
}
