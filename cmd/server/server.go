package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"example.com/jsonblog/internal/blog"
	"example.com/jsonblog/internal/flash"
	"example.com/jsonblog/internal/logger"
	"example.com/jsonblog/internal/middleware"
	"example.com/jsonblog/internal/views"
	"github.com/gorilla/mux"
)

type Server struct {
	blog    *blog.Service
	flashes *flash.Jar
	views   *views.Renderer
}

// Options for Run. TLS is enabled only when both files are set.
type Options struct {
	Addr        string
	TLSCertFile string
	TLSKeyFile  string
}

var logg = logger.New()

// New builds a Server with its own parsed templates.
func New(svc *blog.Service, flashes *flash.Jar) (*Server, error) {
	v, err := views.New()
	if err != nil {
		return nil, err
	}
	return &Server{blog: svc, flashes: flashes, views: v}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK")
	}).Methods(http.MethodGet)

	// --- HTML routes ---
	r.HandleFunc("/", s.indexHandler).Methods(http.MethodGet)
	r.HandleFunc("/add", s.addHandler).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/delete/{post_id}", s.deleteHandler).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/update/{post_id}", s.updateHandler).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/like/{id}", s.likeHandler).Methods(http.MethodGet)

	// --- JSON read API ---
	r.HandleFunc("/api/posts", s.listPostsAPIHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/posts/{post_id}", s.getPostAPIHandler).Methods(http.MethodGet)

	return middleware.RequestLog(r)
}

// Run starts the HTTP server and shuts it down gracefully when ctx is done.
func Run(ctx context.Context, s *Server, opts Options) {
	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		var err error
		if opts.TLSCertFile != "" && opts.TLSKeyFile != "" {
			logg.Info("server", "Starting HTTPS server on "+opts.Addr)
			err = srv.ListenAndServeTLS(opts.TLSCertFile, opts.TLSKeyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+opts.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}
