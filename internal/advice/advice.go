package advice

import (
	"context"
	"log/slog"

	"github.com/ecopulse/ecopulse/internal/metrics"
	"github.com/ecopulse/ecopulse/internal/models"
)

const (
	SourceStatic = "static"
	SourceOpenAI = "openai"
)

type Analysis struct {
	City             string          `json:"city"`
	Score            float64         `json:"score"`
	Category         models.Category `json:"category"`
	Lang             Lang            `json:"lang"`
	Header           string          `json:"header"`
	Situation        string          `json:"situation"`
	StrategiesHeader string          `json:"strategies_header"`
	Strategies       []string        `json:"strategies"`
	CitizensHeader   string          `json:"citizens_header"`
	CitizenRecs      []string        `json:"citizen_recommendations"`
	Source           string          `json:"source"`
}

// Narrator writes the situation paragraph for a city.
type Narrator interface {
	Narrate(ctx context.Context, city string, score float64, category models.Category, lang Lang) (string, error)
}

type Advisor struct {
	narrator Narrator
	logger   *slog.Logger
}

// NewAdvisor returns an advisor. A nil narrator always serves the static
// situation text.
func NewAdvisor(narrator Narrator, logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{narrator: narrator, logger: logger}
}

// Analyze builds the analysis for the category of score. Narration failures
// fall back to the static text.
func (a *Advisor) Analyze(ctx context.Context, city string, score float64, lang Lang) Analysis {
	category := models.CategoryOf(score)
	t := texts[lang][category]
	if t.header == "" {
		lang = LangTR
		t = texts[lang][category]
	}

	res := Analysis{
		City:             city,
		Score:            score,
		Category:         category,
		Lang:             lang,
		Header:           t.header,
		Situation:        city + t.situation,
		StrategiesHeader: t.strategiesHeader,
		Strategies:       t.strategies,
		CitizensHeader:   t.citizensHeader,
		CitizenRecs:      t.citizenRecs,
		Source:           SourceStatic,
	}

	if a.narrator != nil {
		situation, err := a.narrator.Narrate(ctx, city, score, category, lang)
		switch {
		case err != nil:
			a.logger.Warn("narration failed, using static analysis", "city", city, "error", err)
		case situation != "":
			res.Situation = situation
			res.Source = SourceOpenAI
		}
	}

	metrics.AnalysisRequests.WithLabelValues(res.Source).Inc()
	return res
}
