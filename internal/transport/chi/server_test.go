package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/lucidate/scribe/internal/domain"
	healthuc "github.com/lucidate/scribe/internal/usecase/health"
)

// --- Mocks ---

type mockArticles struct {
	err    error
	result domain.ArticleResult
	inputs []domain.ArticleInput
}

func (m *mockArticles) Generate(ctx context.Context, input domain.ArticleInput) (domain.ArticleResult, error) {
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return domain.ArticleResult{}, m.err
	}
	domain.UsageFromContext(ctx).AddGenerationTokens(m.result.Usage.GenerationTokens)
	domain.UsageFromContext(ctx).AddEmbeddingTokens(m.result.Usage.EmbeddingTokens)
	return m.result, nil
}

type mockModels struct{}

func (mockModels) Models() []string { return []string{"gpt-4o", "gpt-4o-mini"} }

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) HealthCheck(_ context.Context) error { return m.err }

func testServer(articles *mockArticles, embeddingErr error) *Server {
	health := healthuc.New()
	health.Register("embedding", &mockHealthChecker{err: embeddingErr})
	return NewServer(articles, mockModels{}, health, 32, zap.NewNop())
}

// multipartBody builds a request body with the given files and form values.
func multipartBody(t *testing.T, files map[string][]string, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, names := range files {
		for _, name := range names {
			fw, err := mw.CreateFormFile(field, name)
			if err != nil {
				t.Fatalf("create form file: %v", err)
			}
			if _, err := fw.Write([]byte("%PDF-1.4 fake")); err != nil {
				t.Fatalf("write form file: %v", err)
			}
		}
	}
	for field, v := range values {
		if err := mw.WriteField(field, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func postArticles(t *testing.T, srv *Server, files map[string][]string, values map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files, values)
	req := httptest.NewRequest("POST", "/v1/articles", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestCreateArticle_Success(t *testing.T) {
	articles := &mockArticles{result: domain.ArticleResult{
		Article: "generated text",
		Model:   "gpt-4o",
		Usage:   domain.TokenUsage{EmbeddingTokens: 10, GenerationTokens: 40},
	}}
	srv := testServer(articles, nil)

	rr := postArticles(t, srv,
		map[string][]string{"style": {"style.pdf"}, "content": {"a.pdf", "b.pdf"}},
		map[string]string{"model": "gpt-4o", "temperature": "0.5"},
	)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp articleResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Article != "generated text" || resp.Model != "gpt-4o" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Usage.TotalTokens != 50 {
		t.Errorf("expected 50 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if rr.Header().Get("X-Total-Tokens") != "50" {
		t.Errorf("expected X-Total-Tokens header, got %q", rr.Header().Get("X-Total-Tokens"))
	}

	input := articles.inputs[0]
	if input.StyleDocument == nil || input.StyleDocument.Name != "style.pdf" {
		t.Errorf("style document not passed through: %+v", input.StyleDocument)
	}
	if len(input.ContentDocuments) != 2 {
		t.Errorf("expected 2 content documents, got %d", len(input.ContentDocuments))
	}
	if input.Temperature == nil || *input.Temperature != 0.5 {
		t.Errorf("expected temperature 0.5, got %v", input.Temperature)
	}
}

func TestCreateArticle_ZeroTemperaturePassedThrough(t *testing.T) {
	articles := &mockArticles{result: domain.ArticleResult{Article: "x", Model: "gpt-4o"}}
	srv := testServer(articles, nil)

	rr := postArticles(t, srv,
		map[string][]string{"content": {"a.pdf"}},
		map[string]string{"model": "gpt-4o", "temperature": "0"},
	)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	input := articles.inputs[0]
	if input.Temperature == nil {
		t.Fatal("explicit temperature 0 was dropped")
	}
	if *input.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", *input.Temperature)
	}
}

func TestCreateArticle_AbsentTemperatureIsNil(t *testing.T) {
	articles := &mockArticles{result: domain.ArticleResult{Article: "x", Model: "gpt-4o"}}
	srv := testServer(articles, nil)

	rr := postArticles(t, srv,
		map[string][]string{"content": {"a.pdf"}},
		map[string]string{"model": "gpt-4o"},
	)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if articles.inputs[0].Temperature != nil {
		t.Errorf("absent temperature should stay nil, got %v", *articles.inputs[0].Temperature)
	}
}

func TestCreateArticle_NoStyleFile(t *testing.T) {
	articles := &mockArticles{result: domain.ArticleResult{Article: "x", Model: "gpt-4o"}}
	srv := testServer(articles, nil)

	rr := postArticles(t, srv,
		map[string][]string{"content": {"a.pdf"}},
		map[string]string{"model": "gpt-4o"},
	)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if articles.inputs[0].StyleDocument != nil {
		t.Error("expected nil style document")
	}
}

func TestCreateArticle_MissingModel(t *testing.T) {
	srv := testServer(&mockArticles{}, nil)

	rr := postArticles(t, srv, map[string][]string{"content": {"a.pdf"}}, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateArticle_InvalidTemperature(t *testing.T) {
	srv := testServer(&mockArticles{}, nil)

	for _, temp := range []string{"abc", "1.5", "-0.1"} {
		rr := postArticles(t, srv,
			map[string][]string{"content": {"a.pdf"}},
			map[string]string{"model": "gpt-4o", "temperature": temp},
		)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("temperature %q: got %d, want %d", temp, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestCreateArticle_DomainErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unsupported model", domain.NewPipelineError(domain.StageValidating, domain.ErrUnsupportedModel),
			http.StatusBadRequest, codeUnsupportedModel},
		{"bad template", domain.NewPipelineError(domain.StageValidating, domain.ErrTemplate),
			http.StatusBadRequest, codeInvalidTemplate},
		{"no content", domain.NewPipelineError(domain.StageValidating, domain.ErrNoContent),
			http.StatusBadRequest, codeNoContent},
		{"extraction", domain.NewPipelineError(domain.StageExtractingSource, domain.ErrExtraction),
			http.StatusUnprocessableEntity, codeExtractionFailed},
		{"index build", domain.NewPipelineError(domain.StageBuildingIndexes, domain.ErrIndexBuild),
			http.StatusBadGateway, codeIndexBuildFailed},
		{"quota", domain.NewPipelineError(domain.StageBuildingIndexes, domain.ErrEmbeddingQuotaExceeded),
			http.StatusPaymentRequired, codeQuotaExceeded},
		{"generation", domain.NewPipelineError(domain.StageGenerating,
			domain.NewGenerationError(false, errors.New("upstream"))),
			http.StatusBadGateway, codeGenerationFailed},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, codeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := testServer(&mockArticles{err: tc.err}, nil)

			rr := postArticles(t, srv,
				map[string][]string{"content": {"a.pdf"}},
				map[string]string{"model": "gpt-4o"},
			)

			if rr.Code != tc.wantStatus {
				t.Fatalf("got %d, want %d: %s", rr.Code, tc.wantStatus, rr.Body.String())
			}
			var resp errorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Code != tc.wantCode {
				t.Errorf("got code %q, want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestCreateArticle_ErrorCarriesStage(t *testing.T) {
	srv := testServer(&mockArticles{
		err: domain.NewPipelineError(domain.StageExtractingSource, domain.ErrExtraction),
	}, nil)

	rr := postArticles(t, srv,
		map[string][]string{"content": {"a.pdf"}},
		map[string]string{"model": "gpt-4o"},
	)

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Stage != string(domain.StageExtractingSource) {
		t.Errorf("got stage %q, want %q", resp.Stage, domain.StageExtractingSource)
	}
}

func TestListModels(t *testing.T) {
	srv := testServer(&mockArticles{}, nil)

	req := httptest.NewRequest("GET", "/v1/models", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	var resp map[string][]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp["models"]) != 2 {
		t.Errorf("expected 2 models, got %v", resp["models"])
	}
}

func TestHealthCheck_Healthy(t *testing.T) {
	srv := testServer(&mockArticles{}, nil)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestHealthCheck_Degraded(t *testing.T) {
	srv := testServer(&mockArticles{}, errors.New("provider down"))

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}
