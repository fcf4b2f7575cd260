package scores

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ecopulse/ecopulse/internal/models"
)

var (
	ErrCityNotFound  = errors.New("city not found")
	ErrNoDataForDate = errors.New("no data for today")
	ErrNoScore       = errors.New("no score for city")
	ErrInvalidMonth  = errors.New("month must be between 1 and 12")
)

const (
	TypeForecast = "forecast"
	TypeMonthly  = "monthly"
)

// Reader is the read side of the store.
type Reader interface {
	MonthlyScores(ctx context.Context) ([]models.MonthlyScore, error)
	MonthlyScoresForYear(ctx context.Context, year int) ([]models.MonthlyScore, error)
	ForecastScoresForYear(ctx context.Context, year int) ([]models.ForecastScore, error)
	CityByName(ctx context.Context, name string) (*models.City, error)
	DailyDataFor(ctx context.Context, cityID int64, date string) (*models.DailyData, error)
}

type Service struct {
	r     Reader
	clock clockwork.Clock
	loc   *time.Location
}

// NewService returns a score service. "Today" is taken from clock in loc; a
// nil clock uses the real clock and a nil loc the process local zone.
func NewService(r Reader, clock clockwork.Clock, loc *time.Location) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{r: r, clock: clock, loc: loc}
}

// YearScores is the per-city score map for one year. Keys of the inner map
// are "q1".."q4" for forecast years and month numbers otherwise.
type YearScores struct {
	Type   string                        `json:"type"`
	Scores map[string]map[string]float64 `json:"scores"`
}

// Round2 rounds the exact binary value of x to two decimals, ties to even.
func Round2(x float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	return v
}

// YearlyAverages returns year -> city -> mean monthly score.
func (s *Service) YearlyAverages(ctx context.Context) (map[string]map[string]float64, error) {
	monthly, err := s.r.MonthlyScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("load monthly scores: %w", err)
	}
	return AverageByYear(monthly), nil
}

// AverageByYear groups scores by (city, year) and averages each group.
func AverageByYear(monthly []models.MonthlyScore) map[string]map[string]float64 {
	type key struct {
		city string
		year int
	}
	type acc struct {
		sum float64
		n   int
	}
	groups := make(map[key]*acc)
	for _, m := range monthly {
		k := key{m.CityName, m.Year}
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.sum += m.Score
		a.n++
	}

	out := make(map[string]map[string]float64)
	for k, a := range groups {
		year := strconv.Itoa(k.year)
		if out[year] == nil {
			out[year] = make(map[string]float64)
		}
		out[year][k.city] = Round2(a.sum / float64(a.n))
	}
	return out
}

// ScoresForYear returns quarterly forecasts for years at or beyond the
// forecast horizon and stored monthly scores otherwise.
func (s *Service) ScoresForYear(ctx context.Context, year int) (*YearScores, error) {
	res := &YearScores{Scores: make(map[string]map[string]float64)}

	if year >= models.ForecastHorizon {
		res.Type = TypeForecast
		forecasts, err := s.r.ForecastScoresForYear(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("load forecast scores: %w", err)
		}
		for _, f := range forecasts {
			res.set(f.CityName, "q"+strconv.Itoa(f.Quarter), f.Score)
		}
		return res, nil
	}

	res.Type = TypeMonthly
	monthly, err := s.r.MonthlyScoresForYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("load monthly scores: %w", err)
	}
	for _, m := range monthly {
		res.set(m.CityName, strconv.Itoa(m.Month), m.Score)
	}
	return res, nil
}

func (y *YearScores) set(city, key string, score float64) {
	if y.Scores[city] == nil {
		y.Scores[city] = make(map[string]float64)
	}
	y.Scores[city][key] = score
}

// Today is the current calendar date in the service's zone.
func (s *Service) Today() string {
	return s.clock.Now().In(s.loc).Format(models.DateLayout)
}

// DailyToday returns the city's daily row for today.
func (s *Service) DailyToday(ctx context.Context, cityName string) (*models.DailyData, error) {
	city, err := s.r.CityByName(ctx, cityName)
	if err != nil {
		return nil, fmt.Errorf("lookup city: %w", err)
	}
	if city == nil {
		return nil, ErrCityNotFound
	}

	d, err := s.r.DailyDataFor(ctx, city.ID, s.Today())
	if err != nil {
		return nil, fmt.Errorf("load daily data: %w", err)
	}
	if d == nil {
		return nil, ErrNoDataForDate
	}
	return d, nil
}

// CityScores returns the single score per city used for rankings: the yearly
// average for monthly years and the mean of stored quarters for forecast
// years.
func (s *Service) CityScores(ctx context.Context, year int) (map[string]float64, error) {
	if year >= models.ForecastHorizon {
		forecasts, err := s.r.ForecastScoresForYear(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("load forecast scores: %w", err)
		}
		return meanByCity(forecasts, func(f models.ForecastScore) (string, float64) {
			return f.CityName, f.Score
		}), nil
	}

	monthly, err := s.r.MonthlyScoresForYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("load monthly scores: %w", err)
	}
	return meanByCity(monthly, func(m models.MonthlyScore) (string, float64) {
		return m.CityName, m.Score
	}), nil
}

func meanByCity[T any](rows []T, get func(T) (string, float64)) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range rows {
		city, score := get(r)
		sums[city] += score
		counts[city]++
	}
	out := make(map[string]float64, len(sums))
	for city, sum := range sums {
		out[city] = Round2(sum / float64(counts[city]))
	}
	return out
}

type Ranking struct {
	Rank       int             `json:"rank"`
	City       string          `json:"city"`
	Score      float64         `json:"score"`
	Category   models.Category `json:"category"`
	Percentile int             `json:"percentile"`
}

func (s *Service) Rankings(ctx context.Context, year int) ([]Ranking, error) {
	scores, err := s.CityScores(ctx, year)
	if err != nil {
		return nil, err
	}
	return Rank(scores), nil
}

// Rank orders cities by score, highest first, ties broken by name. Percentile
// is the share of cities with a strictly lower score.
func Rank(scores map[string]float64) []Ranking {
	out := make([]Ranking, 0, len(scores))
	for city, score := range scores {
		out = append(out, Ranking{City: city, Score: score, Category: models.CategoryOf(score)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].City < out[j].City
	})

	for i := range out {
		out[i].Rank = i + 1
		out[i].Percentile = Percentile(out[i].Score, scores)
	}
	return out
}

func Percentile(score float64, scores map[string]float64) int {
	if len(scores) == 0 {
		return 0
	}
	below := 0
	for _, s := range scores {
		if s < score {
			below++
		}
	}
	return int(math.Round(float64(below) / float64(len(scores)) * 100))
}

type CityScore struct {
	City       string          `json:"city"`
	Year       int             `json:"year"`
	Score      float64         `json:"score"`
	Category   models.Category `json:"category"`
	Percentile int             `json:"percentile"`
}

func (s *Service) CityScore(ctx context.Context, cityName string, year int) (*CityScore, error) {
	city, err := s.r.CityByName(ctx, cityName)
	if err != nil {
		return nil, fmt.Errorf("lookup city: %w", err)
	}
	if city == nil {
		return nil, ErrCityNotFound
	}

	scores, err := s.CityScores(ctx, year)
	if err != nil {
		return nil, err
	}
	score, ok := scores[city.Name]
	if !ok {
		return nil, ErrNoScore
	}
	return &CityScore{
		City:       city.Name,
		Year:       year,
		Score:      score,
		Category:   models.CategoryOf(score),
		Percentile: Percentile(score, scores),
	}, nil
}

type Status string

const (
	StatusBetter Status = "better"
	StatusWorse  Status = "worse"
	StatusSame   Status = "same"
)

// Comparison sets a month's score against the horizon forecast for the same
// quarter.
type Comparison struct {
	City       string  `json:"city"`
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	Quarter    int     `json:"quarter"`
	Current    float64 `json:"current"`
	Forecast   float64 `json:"forecast"`
	Difference float64 `json:"difference"`
	Status     Status  `json:"status"`
}

func StatusOf(diff float64) Status {
	switch {
	case diff > 0.1:
		return StatusBetter
	case diff < -0.1:
		return StatusWorse
	default:
		return StatusSame
	}
}

func (s *Service) Compare(ctx context.Context, cityName string, year, month int) (*Comparison, error) {
	if month < 1 || month > 12 {
		return nil, ErrInvalidMonth
	}
	city, err := s.r.CityByName(ctx, cityName)
	if err != nil {
		return nil, fmt.Errorf("lookup city: %w", err)
	}
	if city == nil {
		return nil, ErrCityNotFound
	}

	monthly, err := s.r.MonthlyScoresForYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("load monthly scores: %w", err)
	}
	var sum float64
	var n int
	for _, m := range monthly {
		if m.CityID == city.ID && m.Month == month {
			sum += m.Score
			n++
		}
	}
	if n == 0 {
		return nil, ErrNoScore
	}
	current := Round2(sum / float64(n))

	quarter := models.QuarterOf(time.Month(month))
	forecasts, err := s.r.ForecastScoresForYear(ctx, models.ForecastHorizon)
	if err != nil {
		return nil, fmt.Errorf("load forecast scores: %w", err)
	}
	forecast, found := 0.0, false
	for _, f := range forecasts {
		if f.CityID == city.ID && f.Quarter == quarter {
			forecast, found = f.Score, true
		}
	}
	if !found {
		return nil, ErrNoScore
	}

	diff := forecast - current
	return &Comparison{
		City:       city.Name,
		Year:       year,
		Month:      month,
		Quarter:    quarter,
		Current:    current,
		Forecast:   forecast,
		Difference: Round2(diff),
		Status:     StatusOf(diff),
	}, nil
}
