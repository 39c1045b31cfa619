package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/kicodex/kicodexd/internal/cache"
	"github.com/kicodex/kicodexd/internal/library"
	"github.com/kicodex/kicodexd/internal/partindex"
	"github.com/kicodex/kicodexd/internal/registry"
)

// Server serves the four read-only /v1 endpoints over the runtime
// registry's loaded libraries.
type Server struct {
	runtime *registry.Runtime
	cache   *cache.Cache[[]byte]

	mu      sync.Mutex
	indexes map[string]*tokenIndex

	httpServer *http.Server
}

type tokenIndex struct {
	lib *library.Library
	idx *partindex.Index
}

// NewServer builds a Server bound to addr, reading libraries from rt and
// caching marshaled responses per responseCacheTTL/maxEntries.
func NewServer(addr string, rt *registry.Runtime, responseCacheTTL time.Duration, maxEntries int) *Server {
	s := &Server{
		runtime: rt,
		cache:   cache.New[[]byte](responseCacheTTL, maxEntries),
		indexes: make(map[string]*tokenIndex),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/", s.handleRoot)
	mux.HandleFunc("GET /v1/categories.json", s.handleCategories)
	mux.HandleFunc("GET /v1/parts/category/{categoryId}", s.handlePartsByCategory)
	mux.HandleFunc("GET /v1/parts/{partId}", s.handlePartByID)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.authMiddleware(mux),
	}
	return s
}

// ListenAndServe blocks serving HTTP until the server is shut down.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes the listening socket and awaits in-flight handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Reload reloads the library at libraryPath for token and invalidates any
// cached responses and part index for that token. The previous library
// remains live if the reload fails.
func (s *Server) Reload(token, libraryPath string) error {
	if err := s.runtime.Reload(token, libraryPath); err != nil {
		return err
	}
	s.cache.DeleteByPrefix(token + ":")
	s.mu.Lock()
	delete(s.indexes, token)
	s.mu.Unlock()
	return nil
}

// indexFor returns the current library and a part index for token,
// rebuilding the index if the underlying library handle changed since it
// was last built.
func (s *Server) indexFor(token string) (*library.Library, *partindex.Index, error) {
	lib, ok := s.runtime.Get(token)
	if !ok {
		return nil, nil, errUnknownToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.indexes[token]; ok && cur.lib == lib {
		return lib, cur.idx, nil
	}

	idx, err := partindex.Build(lib)
	if err != nil {
		return nil, nil, err
	}
	if cur, ok := s.indexes[token]; ok {
		if closeErr := cur.idx.Close(); closeErr != nil {
			log.Printf("[httpapi] close stale part index for token: %v", closeErr)
		}
	}
	s.indexes[token] = &tokenIndex{lib: lib, idx: idx}
	return lib, idx, nil
}

var errUnknownToken = errors.New("httpapi: unknown token")
