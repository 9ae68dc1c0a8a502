package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lucidate/scribe/internal/domain"
	healthuc "github.com/lucidate/scribe/internal/usecase/health"
)

// Multipart form fields accepted by POST /v1/articles.
const (
	formFieldStyle       = "style"
	formFieldContent     = "content"
	formFieldTemplate    = "template"
	formFieldModel       = "model"
	formFieldTemperature = "temperature"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest        = "bad_request"
	codeUnsupportedModel  = "unsupported_model"
	codeInvalidTemplate   = "invalid_template"
	codeNoContent         = "no_content"
	codeExtractionFailed  = "extraction_failed"
	codeIndexBuildFailed  = "index_build_failed"
	codeQuotaExceeded     = "embedding_quota_exceeded"
	codeEmbeddingProvider = "embedding_provider_error"
	codeGenerationFailed  = "generation_failed"
	codeInternalError     = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// ArticleService runs the article pipeline.
type ArticleService interface {
	Generate(ctx context.Context, input domain.ArticleInput) (domain.ArticleResult, error)
}

// ModelLister exposes the configured model registry.
type ModelLister interface {
	Models() []string
}

// Server is the HTTP API for article generation.
type Server struct {
	articles       ArticleService
	models         ModelLister
	health         *healthuc.Service
	logger         *zap.Logger
	maxUploadBytes int64
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server. maxUploadMB caps the total multipart
// payload size per request.
func NewServer(
	articles ArticleService,
	models ModelLister,
	health *healthuc.Service,
	maxUploadMB int,
	logger *zap.Logger,
) *Server {
	s := &Server{
		articles:       articles,
		models:         models,
		health:         health,
		logger:         logger,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
	s.errorHandlers = []errorHandler{
		clientErrorHandler(domain.ErrUnsupportedModel, http.StatusBadRequest, codeUnsupportedModel),
		clientErrorHandler(domain.ErrTemplate, http.StatusBadRequest, codeInvalidTemplate),
		clientErrorHandler(domain.ErrNoContent, http.StatusBadRequest, codeNoContent),
		clientErrorHandler(domain.ErrExtraction, http.StatusUnprocessableEntity, codeExtractionFailed),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrIndexBuild, http.StatusBadGateway, codeIndexBuildFailed),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrGeneration, http.StatusBadGateway, codeGenerationFailed),
	}
	return s
}

// Routes mounts the API routes on a fresh chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/v1/articles", s.CreateArticle)
	r.Get("/v1/models", s.ListModels)
	r.Get("/health", s.HealthCheck)
	return r
}

// articleResponse is the success body of POST /v1/articles.
type articleResponse struct {
	Article string        `json:"article"`
	Model   string        `json:"model"`
	Usage   usageResponse `json:"usage"`
}

type usageResponse struct {
	EmbeddingTokens  int `json:"embedding_tokens"`
	GenerationTokens int `json:"generation_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}

// CreateArticle handles POST /v1/articles.
func (s *Server) CreateArticle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart form: "+err.Error(), "")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	input, err := inputFromForm(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error(), "")
		return
	}

	// Reuse the middleware's usage collector when present so the canonical
	// request log line sees the same token counts.
	ctx := r.Context()
	if domain.UsageFromContext(ctx) == nil {
		ctx, _ = domain.NewContextWithUsage(ctx)
	}

	result, err := s.articles.Generate(ctx, input)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("X-Total-Tokens", strconv.Itoa(result.Usage.Total()))
	writeJSON(w, http.StatusOK, articleResponse{
		Article: result.Article,
		Model:   result.Model,
		Usage: usageResponse{
			EmbeddingTokens:  result.Usage.EmbeddingTokens,
			GenerationTokens: result.Usage.GenerationTokens,
			TotalTokens:      result.Usage.Total(),
		},
	})
}

// ListModels handles GET /v1/models.
func (s *Server) ListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"models": s.models.Models()})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// inputFromForm builds the pipeline input from the multipart form. The style
// file is optional; everything else the pipeline validates itself.
func inputFromForm(form *multipart.Form) (domain.ArticleInput, error) {
	input := domain.ArticleInput{
		Template: formValue(form, formFieldTemplate),
		Model:    formValue(form, formFieldModel),
	}

	if input.Model == "" {
		return domain.ArticleInput{}, errors.New("model form field is required")
	}

	// An absent field selects the configured default; "0" is an explicit,
	// valid choice and must survive as such.
	if raw := formValue(form, formFieldTemperature); raw != "" {
		t, err := strconv.ParseFloat(raw, 32)
		if err != nil || t < 0 || t > 1 {
			return domain.ArticleInput{}, fmt.Errorf("temperature must be a number in [0, 1], got %q", raw)
		}
		temperature := float32(t)
		input.Temperature = &temperature
	}

	if files := form.File[formFieldStyle]; len(files) > 0 {
		doc, err := readUpload(files[0])
		if err != nil {
			return domain.ArticleInput{}, err
		}
		input.StyleDocument = &doc
	}

	for _, fh := range form.File[formFieldContent] {
		doc, err := readUpload(fh)
		if err != nil {
			return domain.ArticleInput{}, err
		}
		input.ContentDocuments = append(input.ContentDocuments, doc)
	}

	return input, nil
}

func formValue(form *multipart.Form, field string) string {
	if vs := form.Value[field]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func readUpload(fh *multipart.FileHeader) (domain.UploadedDocument, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.UploadedDocument{}, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.UploadedDocument{}, fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}

	mediaType := fh.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = domain.MediaTypePDF
	}

	return domain.UploadedDocument{
		Name:      fh.Filename,
		MediaType: mediaType,
		Data:      data,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message, stage string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
		Stage:   stage,
	})
}

// clientErrorHandler matches a sentinel and returns the full error text. Used
// for caller mistakes where detail helps, like the failing document's name.
func clientErrorHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error(), string(domain.StageOf(err)))
		return true
	}
}

// sentinelHandler matches a sentinel and returns only its message, keeping
// upstream provider detail out of responses.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error(), string(domain.StageOf(err)))
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error", string(domain.StageOf(err)))
}
