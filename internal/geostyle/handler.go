package geostyle

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/choropleth/internal/choropleth"
)

const maxStyleRequestBytes = 1 << 20

// HandlerOptions configures the HTTP surface.
type HandlerOptions struct {
	CORSOrigins []string
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// Handler serves style resolution and styled layers over HTTP.
type Handler struct {
	registry *Registry
	cache    *LayerCache
	opts     HandlerOptions
	limiter  *clientLimiter
}

// NewHandler creates a Handler. cache may be nil to disable caching.
func NewHandler(registry *Registry, cache *LayerCache, opts HandlerOptions) *Handler {
	h := &Handler{registry: registry, cache: cache, opts: opts}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		h.limiter = newClientLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return h
}

// Routes returns the router for all endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	if len(h.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{"X-Cache", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
	if h.limiter != nil {
		r.Use(h.limiter.middleware)
	}

	r.Get("/health", h.Health)
	r.Post("/style", h.Style)
	r.Get("/layers", h.ListLayers)
	r.Get("/layers/stats", h.Stats)
	r.Get("/layers/{layer}", h.Layer)
	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type styleRequest struct {
	Properties map[string]any  `json:"properties"`
	Hideout    json.RawMessage `json:"hideout"`
}

// Style resolves one feature's style from a posted properties map and hideout.
func (h *Handler) Style(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStyleRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Hideout) == 0 || string(req.Hideout) == "null" {
		writeError(w, http.StatusBadRequest, "hideout is required")
		return
	}

	hideout, err := choropleth.ParseHideout(req.Hideout, choropleth.FormatJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hideout")
		return
	}

	writeJSON(w, http.StatusOK, choropleth.Resolve(req.Properties, hideout))
}

// ListLayers returns the configured layer names.
func (h *Handler) ListLayers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"layers": h.registry.Names()})
}

// Layer serves a styled layer as GeoJSON at /layers/{layer}. Cached
// renderings are reused until the layer's files change.
func (h *Handler) Layer(w http.ResponseWriter, r *http.Request) {
	name := layerKey(chi.URLParam(r, "layer"))
	if !h.registry.Has(name) {
		writeError(w, http.StatusNotFound, "unknown layer")
		return
	}

	rev, revErr := h.registry.Revision(name)
	cacheable := h.cache != nil && revErr == nil
	if cacheable {
		if cached := h.cache.Get(name, rev); cached != nil {
			w.Header().Set("Content-Type", "application/geo+json")
			w.Header().Set("X-Cache", "hit")
			_, _ = w.Write(cached)
			return
		}
	}

	data, _, err := h.registry.Render(r.Context(), name)
	if err != nil {
		if errors.Is(err, ErrUnknownLayer) {
			writeError(w, http.StatusNotFound, "unknown layer")
			return
		}
		zap.L().Error("geostyle: layer render failed",
			zap.String("layer", name),
			zap.String("request_id", w.Header().Get("X-Request-ID")),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "layer render failed")
		return
	}

	if cacheable {
		h.cache.Put(name, rev, data)
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Cache", "miss")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(data)
}

// Stats returns cache statistics.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusOK, map[string]string{"cache": "disabled"})
		return
	}
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestID tags each response with an X-Request-ID, reusing the caller's.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// clientIdle is the shortest time a client's bucket is kept after its last
// request.
const clientIdle = 3 * time.Minute

// clientLimiter keeps one token bucket per client address. Buckets idle for
// longer than the idle window are swept so the map tracks only active clients.
type clientLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientBucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	// Idle buckets are kept at least until they would have refilled.
	idle := clientIdle
	if refill := float64(burst) / float64(limit); refill > idle.Seconds() {
		idle = time.Duration(min(refill, (24 * time.Hour).Seconds()) * float64(time.Second))
	}
	return &clientLimiter{
		clients: make(map[string]*clientBucket),
		limit:   limit,
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

func (c *clientLimiter) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.idle {
		for k, b := range c.clients {
			if now.Sub(b.seen) >= c.idle {
				delete(c.clients, k)
			}
		}
		c.lastSweep = now
	}

	b, ok := c.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[key] = b
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}

func (c *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !c.allow(host) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
