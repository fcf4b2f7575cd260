package scores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/ecopulse/ecopulse/internal/models"
)

type fakeReader struct {
	cities    []models.City
	monthly   []models.MonthlyScore
	forecasts []models.ForecastScore
	daily     []models.DailyData
	err       error
}

func (f *fakeReader) cityName(id int64) string {
	for _, c := range f.cities {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

func (f *fakeReader) MonthlyScores(ctx context.Context) ([]models.MonthlyScore, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.MonthlyScore
	for _, m := range f.monthly {
		m.CityName = f.cityName(m.CityID)
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeReader) MonthlyScoresForYear(ctx context.Context, year int) ([]models.MonthlyScore, error) {
	all, err := f.MonthlyScores(ctx)
	var out []models.MonthlyScore
	for _, m := range all {
		if m.Year == year {
			out = append(out, m)
		}
	}
	return out, err
}

func (f *fakeReader) ForecastScoresForYear(ctx context.Context, year int) ([]models.ForecastScore, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.ForecastScore
	for _, s := range f.forecasts {
		if s.Year == year {
			s.CityName = f.cityName(s.CityID)
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeReader) CityByName(ctx context.Context, name string) (*models.City, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.cities {
		if c.Name == name {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeReader) DailyDataFor(ctx context.Context, cityID int64, date string) (*models.DailyData, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, d := range f.daily {
		if d.CityID == cityID && d.DataDate == date {
			d := d
			return &d, nil
		}
	}
	return nil, nil
}

func floatPtr(f float64) *float64 { return &f }

func newFixture() *fakeReader {
	return &fakeReader{
		cities: []models.City{{ID: 1, Name: "Ankara"}, {ID: 2, Name: "Izmir"}, {ID: 3, Name: "Van"}},
		monthly: []models.MonthlyScore{
			{CityID: 1, Year: 2024, Month: 1, Score: 70},
			{CityID: 1, Year: 2024, Month: 2, Score: 80},
			{CityID: 2, Year: 2024, Month: 1, Score: 52.3},
			{CityID: 2, Year: 2024, Month: 1, Score: 52.36},
			{CityID: 2, Year: 2023, Month: 6, Score: 49.5},
			{CityID: 3, Year: 2024, Month: 3, Score: 50},
		},
		forecasts: []models.ForecastScore{
			{CityID: 1, Year: 2027, Quarter: 1, Score: 72},
			{CityID: 1, Year: 2027, Quarter: 2, Score: 74.5},
			{CityID: 2, Year: 2027, Quarter: 1, Score: 52.4},
		},
		daily: []models.DailyData{
			{CityID: 1, DataDate: "2025-06-01", NO2: floatPtr(31.5), TempDay: floatPtr(28)},
		},
	}
}

func newTestService(r Reader, now time.Time) *Service {
	return NewService(r, clockwork.NewFakeClockAt(now), time.UTC)
}

func TestYearlyAverages(t *testing.T) {
	svc := newTestService(newFixture(), time.Now())

	got, err := svc.YearlyAverages(context.Background())
	if err != nil {
		t.Fatalf("YearlyAverages: %v", err)
	}
	want := map[string]map[string]float64{
		"2024": {"Ankara": 75, "Izmir": 52.33, "Van": 50},
		"2023": {"Izmir": 49.5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("YearlyAverages mismatch (-want +got):\n%s", diff)
	}
}

func TestYearlyAverages_Empty(t *testing.T) {
	svc := newTestService(&fakeReader{}, time.Now())

	got, err := svc.YearlyAverages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("YearlyAverages = %v, want empty map", got)
	}
}

func TestAverageByYear_RoundsTrueMean(t *testing.T) {
	got := AverageByYear([]models.MonthlyScore{
		{CityName: "Ankara", Year: 2024, Month: 1, Score: 70},
		{CityName: "Ankara", Year: 2024, Month: 2, Score: 80.35},
		{CityName: "Izmir", Year: 2024, Month: 1, Score: 70.25},
		{CityName: "Izmir", Year: 2024, Month: 2, Score: 70},
		{CityName: "Van", Year: 2024, Month: 1, Score: 70},
		{CityName: "Van", Year: 2024, Month: 2, Score: 80},
	})
	want := map[string]map[string]float64{
		"2024": {"Ankara": 75.17, "Izmir": 70.12, "Van": 75},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AverageByYear mismatch (-want +got):\n%s", diff)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{75, 75},
		{52.3349, 52.33},
		{1.005001, 1.01},
		{-1.235001, -1.24},
		{0.125, 0.12},
		{-0.125, -0.12},
		{(70 + 80.35) / 2, 75.17},
		{(70.25 + 70) / 2, 70.12},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestScoresForYear(t *testing.T) {
	svc := newTestService(newFixture(), time.Now())
	ctx := context.Background()

	tests := []struct {
		name string
		year int
		want *YearScores
	}{
		{
			name: "monthly year",
			year: 2024,
			want: &YearScores{Type: TypeMonthly, Scores: map[string]map[string]float64{
				"Ankara": {"1": 70, "2": 80},
				"Izmir":  {"1": 52.36},
				"Van":    {"3": 50},
			}},
		},
		{
			name: "forecast horizon",
			year: 2027,
			want: &YearScores{Type: TypeForecast, Scores: map[string]map[string]float64{
				"Ankara": {"q1": 72, "q2": 74.5},
				"Izmir":  {"q1": 52.4},
			}},
		},
		{
			name: "last monthly year without data",
			year: 2026,
			want: &YearScores{Type: TypeMonthly, Scores: map[string]map[string]float64{}},
		},
		{
			name: "forecast year without data",
			year: 2030,
			want: &YearScores{Type: TypeForecast, Scores: map[string]map[string]float64{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ScoresForYear(ctx, tt.year)
			if err != nil {
				t.Fatalf("ScoresForYear(%d): %v", tt.year, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ScoresForYear(%d) mismatch (-want +got):\n%s", tt.year, diff)
			}
		})
	}
}

func TestScoresForYear_EmptyStore(t *testing.T) {
	svc := newTestService(&fakeReader{}, time.Now())
	ctx := context.Background()

	for year, typ := range map[int]string{2026: TypeMonthly, 2027: TypeForecast} {
		got, err := svc.ScoresForYear(ctx, year)
		if err != nil {
			t.Fatalf("ScoresForYear(%d): %v", year, err)
		}
		want := &YearScores{Type: typ, Scores: map[string]map[string]float64{}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ScoresForYear(%d) mismatch (-want +got):\n%s", year, diff)
		}
	}
}

func TestScoresForYear_StorageError(t *testing.T) {
	svc := newTestService(&fakeReader{err: errors.New("disk I/O error")}, time.Now())
	if _, err := svc.ScoresForYear(context.Background(), 2024); err == nil {
		t.Error("ScoresForYear swallowed storage error")
	}
}

func TestDailyToday(t *testing.T) {
	ctx := context.Background()

	t.Run("row for today", func(t *testing.T) {
		svc := newTestService(newFixture(), time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
		d, err := svc.DailyToday(ctx, "Ankara")
		if err != nil {
			t.Fatalf("DailyToday: %v", err)
		}
		if d.DataDate != "2025-06-01" || d.NO2 == nil || *d.NO2 != 31.5 || d.Precipitation != nil {
			t.Errorf("DailyToday = %+v", d)
		}
	})

	t.Run("no row for today", func(t *testing.T) {
		svc := newTestService(newFixture(), time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
		if _, err := svc.DailyToday(ctx, "Ankara"); !errors.Is(err, ErrNoDataForDate) {
			t.Errorf("DailyToday = %v, want ErrNoDataForDate", err)
		}
	})

	t.Run("unknown city", func(t *testing.T) {
		svc := newTestService(newFixture(), time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
		if _, err := svc.DailyToday(ctx, "Atlantis"); !errors.Is(err, ErrCityNotFound) {
			t.Errorf("DailyToday = %v, want ErrCityNotFound", err)
		}
	})

	t.Run("name match is exact", func(t *testing.T) {
		svc := newTestService(newFixture(), time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
		if _, err := svc.DailyToday(ctx, "ankara"); !errors.Is(err, ErrCityNotFound) {
			t.Errorf("DailyToday(ankara) = %v, want ErrCityNotFound", err)
		}
	})
}

func TestDailyToday_UsesConfiguredZone(t *testing.T) {
	istanbul := time.FixedZone("TRT", 3*60*60)
	// 22:30 UTC on May 31 is already June 1 in Istanbul.
	clock := clockwork.NewFakeClockAt(time.Date(2025, 5, 31, 22, 30, 0, 0, time.UTC))
	svc := NewService(newFixture(), clock, istanbul)

	if got := svc.Today(); got != "2025-06-01" {
		t.Fatalf("Today = %s, want 2025-06-01", got)
	}
	if _, err := svc.DailyToday(context.Background(), "Ankara"); err != nil {
		t.Errorf("DailyToday: %v", err)
	}

	clock.Advance(24 * time.Hour)
	if _, err := svc.DailyToday(context.Background(), "Ankara"); !errors.Is(err, ErrNoDataForDate) {
		t.Errorf("DailyToday next day = %v, want ErrNoDataForDate", err)
	}
}

func TestRankings(t *testing.T) {
	svc := newTestService(newFixture(), time.Now())
	ctx := context.Background()

	got, err := svc.Rankings(ctx, 2024)
	if err != nil {
		t.Fatalf("Rankings: %v", err)
	}
	want := []Ranking{
		{Rank: 1, City: "Ankara", Score: 75, Category: models.CategoryGood, Percentile: 67},
		{Rank: 2, City: "Izmir", Score: 52.33, Category: models.CategoryAverage, Percentile: 33},
		{Rank: 3, City: "Van", Score: 50, Category: models.CategoryPoor, Percentile: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rankings(2024) mismatch (-want +got):\n%s", diff)
	}

	got, err = svc.Rankings(ctx, 2027)
	if err != nil {
		t.Fatalf("Rankings(2027): %v", err)
	}
	want = []Ranking{
		{Rank: 1, City: "Ankara", Score: 73.25, Category: models.CategoryGood, Percentile: 50},
		{Rank: 2, City: "Izmir", Score: 52.4, Category: models.CategoryAverage, Percentile: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rankings(2027) mismatch (-want +got):\n%s", diff)
	}
}

func TestRank_TiesOrderedByName(t *testing.T) {
	got := Rank(map[string]float64{"Van": 60, "Adana": 60, "Mus": 40})
	if got[0].City != "Adana" || got[1].City != "Van" || got[2].City != "Mus" {
		t.Errorf("Rank order = %v", got)
	}
	if got[0].Percentile != 33 || got[1].Percentile != 33 {
		t.Errorf("tied percentiles = %d, %d; want 33", got[0].Percentile, got[1].Percentile)
	}
}

func TestCityScore(t *testing.T) {
	svc := newTestService(newFixture(), time.Now())
	ctx := context.Background()

	got, err := svc.CityScore(ctx, "Izmir", 2024)
	if err != nil {
		t.Fatalf("CityScore: %v", err)
	}
	want := &CityScore{City: "Izmir", Year: 2024, Score: 52.33, Category: models.CategoryAverage, Percentile: 33}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CityScore mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.CityScore(ctx, "Van", 2027); !errors.Is(err, ErrNoScore) {
		t.Errorf("CityScore(Van, 2027) = %v, want ErrNoScore", err)
	}
	if _, err := svc.CityScore(ctx, "Atlantis", 2024); !errors.Is(err, ErrCityNotFound) {
		t.Errorf("CityScore(Atlantis) = %v, want ErrCityNotFound", err)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		diff float64
		want Status
	}{
		{0.5, StatusBetter},
		{0.11, StatusBetter},
		{0.1, StatusSame},
		{0, StatusSame},
		{-0.1, StatusSame},
		{-0.11, StatusWorse},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.diff); got != tt.want {
			t.Errorf("StatusOf(%v) = %s, want %s", tt.diff, got, tt.want)
		}
	}
}

func TestCompare(t *testing.T) {
	svc := newTestService(newFixture(), time.Now())
	ctx := context.Background()

	got, err := svc.Compare(ctx, "Ankara", 2024, 2)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	want := &Comparison{
		City: "Ankara", Year: 2024, Month: 2, Quarter: 1,
		Current: 80, Forecast: 72, Difference: -8, Status: StatusWorse,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare mismatch (-want +got):\n%s", diff)
	}

	got, err = svc.Compare(ctx, "Izmir", 2024, 1)
	if err != nil {
		t.Fatalf("Compare(Izmir): %v", err)
	}
	if got.Current != 52.33 || got.Status != StatusSame {
		t.Errorf("Compare(Izmir) = %+v, want duplicate months averaged and status same", got)
	}

	tests := []struct {
		name  string
		city  string
		year  int
		month int
		want  error
	}{
		{"unknown city", "Atlantis", 2024, 1, ErrCityNotFound},
		{"no monthly score", "Ankara", 2024, 5, ErrNoScore},
		{"no forecast for quarter", "Van", 2024, 3, ErrNoScore},
		{"month out of range", "Ankara", 2024, 13, ErrInvalidMonth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Compare(ctx, tt.city, tt.year, tt.month); !errors.Is(err, tt.want) {
				t.Errorf("Compare = %v, want %v", err, tt.want)
			}
		})
	}
}
