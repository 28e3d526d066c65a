package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	goScrypt "github.com/MrEthical07/goScrypt"
	"github.com/MrEthical07/goScrypt/metrics/export/prometheus"
	"github.com/MrEthical07/goScrypt/password"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 64 << 10

var (
	requestValidator = validator.New(validator.WithRequiredStructEnabled())
	requestModifier  = modifiers.New()
)

// Server serves the JSON API for one engine.
type Server struct {
	engine  *goScrypt.Engine
	logger  *zap.Logger
	metrics *prometheus.PrometheusExporter
}

// New returns a Server. A nil logger discards output.
func New(engine *goScrypt.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:  engine,
		logger:  logger.Named("http"),
		metrics: prometheus.NewPrometheusExporter(engine),
	}
}

// Handler returns the routed API wrapped in access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/hash", s.handleHash)
	mux.HandleFunc("POST /v1/hash/encoded", s.handleHashEncoded)
	mux.HandleFunc("POST /v1/verify", s.handleVerify)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return s.logRequests(mux)
}

// hashRequest is shared by both hash routes. Cost fields are optional and
// fall back to the engine defaults.
type hashRequest struct {
	Password     string  `json:"password"`
	Salt         *string `json:"salt"`
	SaltEncoding string  `json:"salt_encoding" mod:"trim,lcase" validate:"omitempty,oneof=utf8 hex"`
	LogN         *uint8  `json:"ln" validate:"omitempty,excluded_with=N"`
	N            *uint64 `json:"n"`
	R            *uint32 `json:"r"`
	P            *uint32 `json:"p"`
	Length       *uint32 `json:"len"`
}

type verifyRequest struct {
	Subject  string `json:"subject" mod:"trim" validate:"max=256"`
	Password string `json:"password"`
	Hash     string `json:"hash" mod:"trim" validate:"required"`
}

type rawHashResponse struct {
	Hash          string `json:"hash"`
	Salt          string `json:"salt"`
	SaltGenerated bool   `json:"salt_generated"`
	LogN          uint8  `json:"ln"`
	R             uint32 `json:"r"`
	P             uint32 `json:"p"`
	Length        uint32 `json:"len"`
}

type encodedHashResponse struct {
	Hash string `json:"hash"`
}

type verifyResponse struct {
	Match bool `json:"match"`
}

type healthResponse struct {
	Throttle       bool   `json:"throttle"`
	RedisAvailable bool   `json:"redis_available"`
	RedisLatency   string `json:"redis_latency,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleHash(w http.ResponseWriter, r *http.Request) {
	var req hashRequest
	if !s.decode(w, r, &req) {
		return
	}

	opts, err := req.options()
	if err != nil {
		s.writeError(w, err)
		return
	}

	h, err := s.engine.DeriveKey(r.Context(), []byte(req.Password), opts...)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rawHashResponse{
		Hash:          h.Hex,
		Salt:          base64.StdEncoding.EncodeToString(h.Salt),
		SaltGenerated: h.SaltGenerated,
		LogN:          h.Params.LogN,
		R:             h.Params.R,
		P:             h.Params.P,
		Length:        h.OutputLength,
	})
}

func (s *Server) handleHashEncoded(w http.ResponseWriter, r *http.Request) {
	var req hashRequest
	if !s.decode(w, r, &req) {
		return
	}

	opts, err := req.options()
	if err != nil {
		s.writeError(w, err)
		return
	}

	encoded, err := s.engine.HashEncoded(r.Context(), []byte(req.Password), opts...)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, encodedHashResponse{Hash: encoded})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !s.decode(w, r, &req) {
		return
	}

	var (
		ok  bool
		err error
	)
	if req.Subject != "" {
		ok, err = s.engine.VerifyFor(r.Context(), req.Subject, []byte(req.Password), req.Hash)
	} else {
		ok, err = s.engine.Verify(r.Context(), []byte(req.Password), req.Hash)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{Match: ok})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.engine.Health(r.Context())

	resp := healthResponse{Throttle: h.ThrottleConfigured, RedisAvailable: h.RedisAvailable}
	if h.RedisAvailable {
		resp.RedisLatency = h.RedisLatency.String()
	}

	status := http.StatusOK
	if h.ThrottleConfigured && !h.RedisAvailable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// options converts the request into engine options. Only fields present in
// the body are forwarded.
func (req *hashRequest) options() ([]goScrypt.HashOption, error) {
	var opts []goScrypt.HashOption

	if req.LogN != nil {
		opts = append(opts, goScrypt.WithLogN(*req.LogN))
	}
	if req.N != nil {
		opts = append(opts, goScrypt.WithN(*req.N))
	}
	if req.R != nil {
		opts = append(opts, goScrypt.WithBlockSize(*req.R))
	}
	if req.P != nil {
		opts = append(opts, goScrypt.WithParallelism(*req.P))
	}
	if req.Length != nil {
		opts = append(opts, goScrypt.WithOutputLength(*req.Length))
	}

	if req.Salt != nil {
		switch req.SaltEncoding {
		case "hex":
			salt, err := hex.DecodeString(*req.Salt)
			if err != nil {
				return nil, fmt.Errorf("%w: salt is not hex: %v", goScrypt.ErrSaltEncoding, err)
			}
			opts = append(opts, goScrypt.WithSalt(salt))
		default:
			opts = append(opts, goScrypt.WithSaltString(*req.Salt))
		}
	}

	return opts, nil
}

var errBadRequest = errors.New("bad request")

// decode reads, normalizes, and validates a JSON body into dst. It writes
// the error response itself and reports whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err))
		return false
	}

	if err := requestModifier.Struct(r.Context(), dst); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}

	if err := requestValidator.Struct(dst); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}

	return true
}

// statusFor maps engine errors onto HTTP status codes and stable error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, goScrypt.ErrInvalidParameters):
		return http.StatusBadRequest, "invalid_parameters"
	case errors.Is(err, goScrypt.ErrSaltEncoding):
		return http.StatusBadRequest, "salt_encoding"
	case errors.Is(err, goScrypt.ErrPasswordTooLong):
		return http.StatusBadRequest, "password_too_long"
	case errors.Is(err, goScrypt.ErrParse):
		return http.StatusUnprocessableEntity, "parse"
	case errors.Is(err, goScrypt.ErrVerifyRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, goScrypt.ErrThrottleUnavailable):
		return http.StatusServiceUnavailable, "backend_unavailable"
	case errors.Is(err, goScrypt.ErrHashComputation):
		if errors.Is(err, password.ErrInvalidKeyLength) {
			return http.StatusBadRequest, "invalid_length"
		}
		return http.StatusInternalServerError, "hash_computation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
