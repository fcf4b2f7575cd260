package advice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go/v2/option"

	"github.com/ecopulse/ecopulse/internal/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubNarrator struct {
	text string
	err  error
}

func (s stubNarrator) Narrate(ctx context.Context, city string, score float64, category models.Category, lang Lang) (string, error) {
	return s.text, s.err
}

func TestParseLang(t *testing.T) {
	for in, want := range map[string]Lang{"en": LangEN, "tr": LangTR, "": LangTR, "de": LangTR, "EN": LangTR} {
		if got := ParseLang(in); got != want {
			t.Errorf("ParseLang(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestAnalyze_Static(t *testing.T) {
	a := NewAdvisor(nil, discard)
	ctx := context.Background()

	tests := []struct {
		score     float64
		lang      Lang
		category  models.Category
		header    string
		situation string
	}{
		{48.2, LangTR, models.CategoryPoor, "Durum Analizi: Kritik Seviye", "Van şehrinin ekolojik sağlığı kritik"},
		{51, LangEN, models.CategoryPoor, "Analysis: Critical Level", "Van's ecological health is at a critical level."},
		{53.5, LangTR, models.CategoryAverage, "Durum Analizi: Denge Arayışı", "Van şehrinin ekolojik durumu orta seviyededir"},
		{55, LangEN, models.CategoryAverage, "Analysis: Seeking Balance", "Van's ecological condition is average"},
		{70, LangEN, models.CategoryGood, "Analysis: Green Achievement", "Van's ecological health is in good condition."},
	}

	for _, tt := range tests {
		got := a.Analyze(ctx, "Van", tt.score, tt.lang)
		if got.Category != tt.category || got.Header != tt.header {
			t.Errorf("Analyze(%v, %s) = %s/%q, want %s/%q", tt.score, tt.lang, got.Category, got.Header, tt.category, tt.header)
		}
		if !strings.HasPrefix(got.Situation, tt.situation) {
			t.Errorf("Analyze(%v, %s).Situation = %q, want prefix %q", tt.score, tt.lang, got.Situation, tt.situation)
		}
		if got.Source != SourceStatic || len(got.Strategies) != 3 || len(got.CitizenRecs) != 3 {
			t.Errorf("Analyze(%v, %s) = %+v", tt.score, tt.lang, got)
		}
	}
}

func TestAnalyze_Narrated(t *testing.T) {
	a := NewAdvisor(stubNarrator{text: "Van is doing fine."}, discard)

	got := a.Analyze(context.Background(), "Van", 60, LangEN)
	if got.Situation != "Van is doing fine." || got.Source != SourceOpenAI {
		t.Errorf("Analyze = %q from %s, want narrated text", got.Situation, got.Source)
	}
	if got.Header != "Analysis: Green Achievement" {
		t.Errorf("Header = %q, want static header", got.Header)
	}
}

func TestAnalyze_NarratorFailureFallsBack(t *testing.T) {
	a := NewAdvisor(stubNarrator{err: errors.New("rate limited")}, discard)

	got := a.Analyze(context.Background(), "Van", 60, LangEN)
	if got.Source != SourceStatic || !strings.HasPrefix(got.Situation, "Van's ecological health") {
		t.Errorf("Analyze = %+v, want static fallback", got)
	}
}

const completionJSON = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-4o-mini",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "  Ankara'nın ekolojik durumu iyi.  "}
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18}
}`

func TestOpenAINarrator_Narrate(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionJSON)
	}))
	defer srv.Close()

	n, err := NewOpenAINarrator("test-key", "", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	got, err := n.Narrate(context.Background(), "Ankara", 61.5, models.CategoryGood, LangTR)
	if err != nil {
		t.Fatalf("Narrate: %v", err)
	}
	if got != "Ankara'nın ekolojik durumu iyi." {
		t.Errorf("Narrate = %q", got)
	}
	for _, want := range []string{DefaultModel, "Turkish", "Ankara", "61.50"} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %q: %s", want, body)
		}
	}
}

func TestOpenAINarrator_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error": {"message": "boom", "type": "server_error"}}`)
	}))
	defer srv.Close()

	n, err := NewOpenAINarrator("test-key", "gpt-4o-mini", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	a := NewAdvisor(n, discard)

	for i := 0; i < 5; i++ {
		got := a.Analyze(context.Background(), "Izmir", 50, LangEN)
		if got.Source != SourceStatic {
			t.Fatalf("call %d: Source = %s, want static", i, got.Source)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("upstream calls = %d, want 3 before the breaker opened", calls.Load())
	}
}

func TestNewOpenAINarrator_RequiresKey(t *testing.T) {
	if _, err := NewOpenAINarrator("", ""); err == nil {
		t.Error("NewOpenAINarrator accepted empty key")
	}
}
