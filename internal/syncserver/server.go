// Package syncserver hosts automerge task stores and syncs them with clients
// over websockets.
package syncserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"tasksync/internal/backend/amstore"
	"tasksync/internal/syncwire"
)

// DefaultPersistInterval is how often changed stores are written to the repo.
const DefaultPersistInterval = 5 * time.Second

// Options configures a Server.
type Options struct {
	// SyncInterval is how often pending changes are pushed to clients.
	SyncInterval time.Duration

	// PersistInterval is how often changed stores are saved.
	PersistInterval time.Duration

	// AllowedOrigins lists browser origins allowed by CORS. Empty allows all.
	AllowedOrigins []string

	Logger *slog.Logger
}

type entry struct {
	store *amstore.Store
	saved string
}

// Server holds every store in memory and persists them through a Repo.
type Server struct {
	repo     Persister
	opts     Options
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	stores map[string]*entry
}

// Persister is the storage a Server saves documents to. *Repo implements it.
type Persister interface {
	LoadAll(ctx context.Context) (map[string][]byte, error)
	Save(ctx context.Context, id string, raw []byte) error
}

// New creates a server backed by repo.
func New(repo Persister, opts Options) *Server {
	if opts.PersistInterval <= 0 {
		opts.PersistInterval = DefaultPersistInterval
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = syncwire.DefaultInterval
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		repo: repo,
		opts: opts,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		stores: make(map[string]*entry),
	}
}

// Load reads every persisted store into memory.
func (s *Server) Load(ctx context.Context) error {
	docs, err := s.repo.LoadAll(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, raw := range docs {
		st, err := amstore.Load(raw, amstore.WithLogger(s.log))
		if err != nil {
			return err
		}
		s.stores[id] = &entry{store: st, saved: st.Heads()}
	}
	s.log.Info("loaded stores", "count", len(docs))
	return nil
}

func (s *Server) lookup(name string, create bool) *amstore.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.stores[name]; ok {
		return e.store
	}
	if !create {
		return nil
	}
	st := amstore.New(nil, amstore.WithLogger(s.log))
	s.stores[name] = &entry{store: st}
	s.log.Info("created store", "store", name)
	return st
}

// Names returns the names of all stores held in memory.
func (s *Server) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.stores))
	for name := range s.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Persist saves every store whose heads changed since the last save.
func (s *Server) Persist(ctx context.Context) error {
	s.mu.Lock()
	pending := make(map[string]*entry, len(s.stores))
	for name, e := range s.stores {
		pending[name] = e
	}
	s.mu.Unlock()

	var errs []error
	for name, e := range pending {
		heads := e.store.Heads()
		if heads == e.saved {
			continue
		}
		if err := s.repo.Save(ctx, name, e.store.Save()); err != nil {
			s.log.Error("failed to back up store", "store", name, "err", err)
			errs = append(errs, err)
			continue
		}
		s.mu.Lock()
		e.saved = heads
		s.mu.Unlock()
		s.log.Info("backed up", "store", name, "heads", heads)
	}
	return errors.Join(errs...)
}

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			s.log.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})

	r.Methods(http.MethodGet).Path("/health").HandlerFunc(s.health)
	r.Methods(http.MethodGet).Path("/stores/{store:[A-Za-z0-9_.-]+}/latest").HandlerFunc(s.getStore)
	r.Methods(http.MethodGet).Path("/stores/{store:[A-Za-z0-9_.-]+}/sync").HandlerFunc(s.syncStore)

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	})
	return c.Handler(r)
}

func (s *Server) health(writer http.ResponseWriter, _ *http.Request) {
	_, _ = writer.Write([]byte("OK"))
}

func (s *Server) getStore(writer http.ResponseWriter, request *http.Request) {
	st := s.lookup(mux.Vars(request)["store"], false)
	if st == nil {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	writer.Header().Add("Content-Type", "application/octet-stream")
	if _, err := writer.Write(st.Save()); err != nil {
		s.log.Error("failed to write out", "err", err)
	}
}

func (s *Server) syncStore(writer http.ResponseWriter, request *http.Request) {
	name := mux.Vars(request)["store"]
	st := s.lookup(name, true)

	conn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		s.log.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	s.log.Debug("syncing", "store", name)
	if err := syncwire.Sync(request.Context(), conn, st.NewPeer(), s.opts.SyncInterval); err != nil {
		s.log.Warn("failed to sync", "store", name, "err", err)
	}
}

// Run serves on addr until ctx is done, persisting on an interval and once
// more on the way out.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: s.Handler()}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t := time.NewTicker(s.opts.PersistInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				_ = s.Persist(gctx)
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		s.log.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
		}
		return nil
	})

	err := g.Wait()

	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if perr := s.Persist(persistCtx); perr != nil && err == nil {
		err = perr
	}
	return err
}
