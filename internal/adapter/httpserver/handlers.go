package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"github.com/qanuni/legalai/internal/adapter/observability"
	"github.com/qanuni/legalai/internal/cache"
	"github.com/qanuni/legalai/internal/config"
	"github.com/qanuni/legalai/internal/domain"
	"github.com/qanuni/legalai/internal/ratelimit"
	"github.com/qanuni/legalai/internal/usecase"
)

// Chat endpoint messages.
const (
	msgRateLimited  = "تعداد پیام‌های شما از حد مجاز گذشته است. لطفاً یک دقیقه دیگر تلاش کنید. / Too many messages. Please try again in a minute."
	msgChatFailed   = "متأسفانه دستیار در حال حاضر در دسترس نیست. لطفاً بعداً تلاش کنید. / Sorry, the assistant is unavailable right now. Please try again later."
	msgInvalidInput = "متن پیام الزامی است. / A message is required."
)

const maxJSONBody = 1 << 20

// Replier answers a single chat message.
type Replier interface {
	Reply(ctx context.Context, message string) (string, error)
}

// StatusLister reads the provider dashboard rows.
type StatusLister interface {
	ListStatuses(ctx context.Context) ([]domain.ProviderStatus, error)
}

// Server aggregates handlers dependencies.
type Server struct {
	Cfg       config.Config
	Chat      Replier
	Generator *usecase.GenerationService
	Limiter   ratelimit.Limiter
	Cache     *cache.Cache
	// Providers may be nil; the dashboard then lists the configured chain only.
	Providers  StatusLister
	Configured []domain.ProviderInfo
	Probes     []usecase.Probe
	Clock      clockwork.Clock
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New()
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

func (s *Server) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// ChatHandler serves /api/whatsapp-chat and /api/chat. The limiter is
// consulted before any provider is called.
func (s *Server) ChatHandler(route string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		lg := observability.LoggerFromContext(ctx)

		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, msgInvalidInput)
			return
		}

		if s.Limiter != nil {
			d, err := s.Limiter.Allow(ctx, limiterKey(r, req.SessionID))
			if err != nil {
				lg.Warn("rate limiter unavailable; allowing request", slog.Any("error", err))
			}
			setRateLimitHeaders(w, d, s.now())
			if !d.Allowed {
				observability.RateLimitRejectedTotal.WithLabelValues(route).Inc()
				writeMessage(w, http.StatusTooManyRequests, msgRateLimited)
				return
			}
		}

		reply, err := s.Chat.Reply(ctx, req.Message)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				writeMessage(w, http.StatusBadRequest, msgInvalidInput)
				return
			}
			lg.Error("chat reply failed", slog.String("route", route), slog.Any("error", err))
			writeMessage(w, http.StatusInternalServerError, msgChatFailed)
			return
		}
		writeJSON(w, http.StatusOK, chatResponse{Response: reply})
	}
}

// limiterKey prefers the session id, falling back to the client IP.
func limiterKey(r *http.Request, sessionID string) string {
	if sid := strings.TrimSpace(sessionID); sid != "" {
		return "session:" + sid
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xr != "" {
		return xr
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// decodeJSON decodes and validates a JSON body into dst, writing the error
// response itself. It reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return false
	}
	if err := getValidator().Struct(dst); err != nil {
		verrs := map[string]string{}
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				verrs[fe.Field()] = fe.Tag()
			}
		}
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
		return false
	}
	return true
}

// generateHandler adapts one structured generation wrapper to HTTP.
func generateHandler[Req any, Res any](call func(ctx context.Context, req Req) (Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := call(r.Context(), req)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type strategyRequest struct {
	CaseDetails string `json:"case_details" validate:"required,max=20000"`
}

type citationsRequest struct {
	Topic string `json:"topic" validate:"required,max=500"`
}

type resumeRequest struct {
	Resume     string `json:"resume" validate:"required,max=50000"`
	TargetRole string `json:"target_role" validate:"required,max=200"`
}

type contractRequest struct {
	Contract string `json:"contract" validate:"required,max=100000"`
}

type evidenceRequest struct {
	Description string `json:"description" validate:"required,max=20000"`
}

type draftRequest struct {
	DocType string `json:"doc_type" validate:"required,max=200"`
	Details string `json:"details" validate:"required,max=20000"`
}

type newsRequest struct {
	Query string `json:"query" validate:"required,max=500"`
}

// StrategyHandler serves POST /api/ai/strategy.
func (s *Server) StrategyHandler() http.HandlerFunc {
	return generateHandler(func(ctx context.Context, req strategyRequest) (usecase.LegalStrategy, error) {
		return s.Generator.GenerateStrategy(ctx, req.CaseDetails)
	})
}

// CitationsHandler serves POST /api/ai/citations.
func (s *Server) CitationsHandler() http.HandlerFunc {
	return generateHandler(func(ctx context.Context, req citationsRequest) (usecase.CitationList, error) {
		return s.Generator.FindCitations(ctx, req.Topic)
	})
}

// ResumeHandler serves POST /api/ai/resume.
func (s *Server) ResumeHandler() http.HandlerFunc {
	return generateHandler(func(ctx context.Context, req resumeRequest) (usecase.ResumeAnalysis, error) {
		return s.Generator.AnalyzeResume(ctx, req.Resume, req.TargetRole)
	})
}

// ContractHandler serves POST /api/ai/contract.
func (s *Server) ContractHandler() http.HandlerFunc {
	return generateHandler(func(ctx context.Context, req contractRequest) (usecase.ContractAnalysis, error) {
		return s.Generator.AnalyzeContract(ctx, req.Contract)
	})
}

// EvidenceHandler serves POST /api/ai/evidence.
func (s *Server) EvidenceHandler() http.HandlerFunc {
	return generateHandler(func(ctx context.Context, req evidenceRequest) (usecase.EvidenceAnalysis, error) {
		return s.Generator.AnalyzeEvidence(ctx, req.Description)
	})
}

// DraftHandler serves POST /api/ai/draft.
func (s *Server) DraftHandler() http.HandlerFunc {
	return generateHandler(func(ctx context.Context, req draftRequest) (usecase.DraftedDocument, error) {
		return s.Generator.DraftDocument(ctx, req.DocType, req.Details)
	})
}

// NewsHandler serves POST /api/ai/news.
func (s *Server) NewsHandler() http.HandlerFunc {
	return generateHandler(func(ctx context.Context, req newsRequest) (usecase.NewsDigest, error) {
		return s.Generator.LegalNews(ctx, req.Query)
	})
}

// allowedUpload enforces the contract upload allowlist: plain text or
// markdown by extension, text/* by content.
func allowedUpload(filename string, data []byte) (string, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
	default:
		return "", false
	}
	m := mimetype.Detect(data)
	return m.String(), strings.HasPrefix(m.String(), "text/")
}

// ContractUploadHandler serves POST /api/ai/contract/upload: a multipart
// "file" field holding the contract text.
func (s *Server) ContractUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) || strings.Contains(strings.ToLower(err.Error()), "too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
					Code: "INVALID_ARGUMENT", Message: "payload too large", Details: map[string]any{"max_mb": s.Cfg.MaxUploadMB},
				}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: file required", domain.ErrInvalidArgument), map[string]string{"field": "file"})
			return
		}
		defer func() { _ = f.Close() }()
		data, err := io.ReadAll(f)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: read file: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		if mime, ok := allowedUpload(hdr.Filename, data); !ok {
			writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{
				Code: "INVALID_ARGUMENT", Message: "unsupported media type", Details: map[string]any{"filename": hdr.Filename, "mime": mime},
			}})
			return
		}
		res, err := s.Generator.AnalyzeContract(r.Context(), string(data))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type providerView struct {
	domain.ProviderStatus
	Configured bool `json:"configured"`
}

// ProvidersHandler serves GET /api/ai/providers.
func (s *Server) ProvidersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		configured := make(map[string]bool, len(s.Configured))
		for _, p := range s.Configured {
			configured[p.Name] = true
		}
		var rows []domain.ProviderStatus
		if s.Providers != nil {
			var err error
			if rows, err = s.Providers.ListStatuses(r.Context()); err != nil {
				writeError(w, r, err, nil)
				return
			}
		} else {
			for _, p := range s.Configured {
				rows = append(rows, domain.ProviderStatus{Name: p.Name, Kind: p.Kind, Model: p.Model, Priority: p.Priority, Enabled: true})
			}
		}
		out := make([]providerView, 0, len(rows))
		for _, row := range rows {
			out = append(out, providerView{ProviderStatus: row, Configured: configured[row.Name]})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ReadyzHandler reports the configured dependency probes.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks, ok := usecase.RunProbes(r.Context(), 2*time.Second, s.Probes...)
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
