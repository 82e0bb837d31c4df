package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/proxy"
	"github.com/sagarc03/cryptosheet/ratelimit"
	"github.com/sagarc03/cryptosheet/sandbox"
)

// DefaultMaxUploadBytes caps uploaded blobs.
const DefaultMaxUploadBytes = 2 << 20

const (
	// maxFieldBytes caps non-file multipart fields.
	maxFieldBytes = 4 << 10
	// maxMultipartOverhead bounds everything in an upload body besides the
	// file itself.
	maxMultipartOverhead = 1 << 20
)

type Service interface {
	Fetch(ctx context.Context, key string) (cryptosheet.Entry, error)
	Put(ctx context.Context, key string, value []byte) (string, error)
	Delete(ctx context.Context, key string) (bool, error)
	Command(ctx context.Context, name string, args []string) (any, error)
	StoreBlob(ctx context.Context, key string, up cryptosheet.Upload) (cryptosheet.UploadResult, error)
}

// Fetcher sends proxied requests.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (proxy.Response, error)
	Do(ctx context.Context, req proxy.Request) (proxy.Response, error)
}

// Runner executes sandbox jobs.
type Runner interface {
	Execute(ctx context.Context, job sandbox.Job) (sandbox.Result, error)
	ParseTimeout(raw any) (time.Duration, error)
	DefaultTimeout() time.Duration
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	// Secret is the shared secret; empty means open mode.
	Secret string
	// ProtectReads requires the secret on GET /{key} and GET /basic.
	ProtectReads bool
	// Limiter is optional; nil disables rate limiting.
	Limiter           *ratelimit.Limiter
	MaxUploadBytes    int64
	TrustProxyHeaders bool
	CORS              CORSConfig
	// Metrics is optional; when set /metrics is served.
	Metrics *Metrics
}

// Handler provides the gateway's HTTP routes.
type Handler struct {
	config  HandlerConfig
	auth    *Authenticator
	service Service
	fetcher Fetcher
	runner  Runner
}

// NewHandler creates a new Handler with the given configuration and
// collaborators.
func NewHandler(config *HandlerConfig, service Service, fetcher Fetcher, runner Runner) *Handler {
	cfg := *config
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	return &Handler{
		config:  cfg,
		auth:    NewAuthenticator(cfg.Secret),
		service: service,
		fetcher: fetcher,
		runner:  runner,
	}
}

// Router returns an http.Handler with every route registered. /metrics is
// outside admission; /health is rate limited but never authenticated.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if h.config.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger(h.config.Metrics))
	r.Use(Recoverer)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, CodeNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, CodeMethod, "Method not allowed", nil)
	})

	if h.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.config.Metrics.Handler())
	}

	admission := func(requireAuth bool) func(http.Handler) http.Handler {
		return AdmissionMiddleware(AdmissionConfig{
			Limiter:     h.config.Limiter,
			Auth:        h.auth,
			RequireAuth: requireAuth,
			Metrics:     h.config.Metrics,
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(admission(false))
		r.Get("/health", h.handleHealth)
		if !h.config.ProtectReads {
			r.Get("/basic", h.handleBasicGet)
			r.Get("/{key}", h.handleFetch)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(admission(true))
		if h.config.ProtectReads {
			r.Get("/basic", h.handleBasicGet)
			r.Get("/{key}", h.handleFetch)
		}
		r.Post("/basic", h.handleBasicSet)
		r.Delete("/basic", h.handleBasicDelete)
		r.Post("/cmd", h.handleCommand)
		r.Get("/get", h.handleProxyGet)
		r.Post("/url", h.handleProxy)
		r.Get("/eval", h.handleEvalQuery)
		r.Post("/eval", h.handleEval)
		r.Post("/upload", h.handleUpload)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	h.fetch(w, r, key)
}

func (h *Handler) handleBasicGet(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		HandleError(w, cryptosheet.BadRequest("need key in query"))
		return
	}
	h.fetch(w, r, key)
}

// fetch writes a blob as raw bytes with its stored content type and any
// other value as {"value": ...}.
func (h *Handler) fetch(w http.ResponseWriter, r *http.Request, key string) {
	entry, err := h.service.Fetch(r.Context(), key)
	if err != nil {
		HandleError(w, err)
		return
	}

	if entry.Key.IsBlob() {
		w.Header().Set("Content-Type", entry.Mimetype)
		w.Header().Set("Content-Length", strconv.Itoa(len(entry.Value)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(entry.Value)
		return
	}

	var value any
	if entry.Exists {
		value = string(entry.Value)
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"value": value})
}

func (h *Handler) handleBasicSet(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		HandleError(w, err)
		return
	}

	req, err := parseSetRequest(p)
	if err != nil {
		HandleError(w, err)
		return
	}

	reply, err := h.service.Put(r.Context(), req.Key, req.Value)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"response": reply})
}

func (h *Handler) handleBasicDelete(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		HandleError(w, cryptosheet.BadRequest("need key in query"))
		return
	}

	removed, err := h.service.Delete(r.Context(), key)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"updated": removed})
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		HandleError(w, err)
		return
	}

	req, err := parseCommandRequest(p)
	if err != nil {
		HandleError(w, err)
		return
	}

	reply, err := h.service.Command(r.Context(), req.Cmd, req.Args)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"response": reply})
}

// handleProxyGet takes the whole raw query string as the target URL.
func (h *Handler) handleProxyGet(w http.ResponseWriter, r *http.Request) {
	target := r.URL.RawQuery
	if target == "" {
		HandleError(w, cryptosheet.BadRequest("need url as query string"))
		return
	}

	resp, err := h.fetcher.Get(r.Context(), target)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleProxy(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		HandleError(w, err)
		return
	}

	req, err := parseURLRequest(p)
	if err != nil {
		HandleError(w, err)
		return
	}

	resp, err := h.fetcher.Do(r.Context(), req)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, resp)
}

// handleEvalQuery runs the raw query string as a script with the default
// timeout. The query is percent-decoded when it decodes cleanly.
func (h *Handler) handleEvalQuery(w http.ResponseWriter, r *http.Request) {
	script := r.URL.RawQuery
	if decoded, err := url.PathUnescape(script); err == nil {
		script = decoded
	}

	h.eval(w, r, sandbox.Job{Source: script, Timeout: h.runner.DefaultTimeout()})
}

func (h *Handler) handleEval(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		HandleError(w, err)
		return
	}

	req, err := parseEvalRequest(p)
	if err != nil {
		HandleError(w, err)
		return
	}

	timeout, err := h.runner.ParseTimeout(req.Timeout)
	if err != nil {
		HandleError(w, err)
		return
	}

	job := sandbox.Job{Source: req.Script, Timeout: timeout}
	if req.UseEthers {
		job.Capabilities = []string{sandbox.ChainCapability}
	}

	h.eval(w, r, job)
}

func (h *Handler) eval(w http.ResponseWriter, r *http.Request, job sandbox.Job) {
	res, err := h.runner.Execute(r.Context(), job)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"result": res.Value})
}

// handleUpload streams the multipart body. Only the "key" field and the
// "file" part are read; the file is refused once it exceeds the upload
// limit.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes+maxMultipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		HandleError(w, cryptosheet.BadRequest("missing file in body"))
		return
	}

	var (
		key     string
		upload  cryptosheet.Upload
		hasFile bool
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			HandleError(w, cryptosheet.BadRequest("malformed multipart body"))
			return
		}

		switch part.FormName() {
		case "key":
			key, err = readField(part)
		case "file":
			upload, err = h.readFile(part)
			hasFile = err == nil
		}
		_ = part.Close()
		if err != nil {
			HandleError(w, err)
			return
		}
	}

	if key == "" {
		HandleError(w, cryptosheet.BadRequest("need key in body"))
		return
	}
	if _, err := cryptosheet.ParseBlobKey(key); err != nil {
		HandleError(w, err)
		return
	}
	if !hasFile {
		HandleError(w, cryptosheet.BadRequest("missing file in body"))
		return
	}

	res, err := h.service.StoreBlob(r.Context(), key, upload)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, res)
}

func readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", cryptosheet.BadRequest("malformed multipart body")
	}
	if len(b) > maxFieldBytes {
		return "", cryptosheet.BadRequest("field too large").With("field", part.FormName())
	}
	return string(b), nil
}

func (h *Handler) readFile(part *multipart.Part) (cryptosheet.Upload, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, h.config.MaxUploadBytes+1))
	if err != nil {
		return cryptosheet.Upload{}, cryptosheet.BadRequest("malformed multipart body")
	}
	if n > h.config.MaxUploadBytes {
		return cryptosheet.Upload{}, cryptosheet.BadRequest("file too large").With("limit", h.config.MaxUploadBytes)
	}

	return cryptosheet.Upload{
		Name:     part.FileName(),
		Mimetype: part.Header.Get("Content-Type"),
		Data:     buf.Bytes(),
	}, nil
}
