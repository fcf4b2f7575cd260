package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-playground/validator/v10"
)

// Config holds all service settings. Flags win over environment variables,
// which win over defaults.
type Config struct {
	DB           string `name:"db" env:"ECOPULSE_DB" default:"data/ecopulse.db" help:"SQLite database path." validate:"required"`
	Addr         string `name:"addr" env:"ECOPULSE_ADDR" default:":8000" help:"HTTP listen address." validate:"required"`
	MonthlyFeed  string `name:"monthly-feed" env:"ECOPULSE_MONTHLY_FEED" default:"EcoPulse_Skorlari_AYLIK_2020-2025_Temizlenmis.csv" help:"Monthly scores feed (path or URL)." validate:"required"`
	ForecastFeed string `name:"forecast-feed" env:"ECOPULSE_FORECAST_FEED" default:"EcoPulse_2027_Tahminleri_2020-2025_Verisiyle.csv" help:"Forecast scores feed (path or URL)." validate:"required"`
	DailyFeed    string `name:"daily-feed" env:"ECOPULSE_DAILY_FEED" default:"EcoPulse_Skorlari_GUNLUK_2020-2025_Temizlenmis.csv" help:"Daily snapshot feed (path or URL)." validate:"required"`
	Timezone     string `name:"timezone" env:"ECOPULSE_TIMEZONE" default:"Local" help:"IANA zone used to decide today."`

	LogLevel        string        `name:"log-level" env:"LOG_LEVEL" default:"info" help:"debug, info, warn or error." validate:"oneof=debug info warn error"`
	LogFormat       string        `name:"log-format" env:"LOG_FORMAT" default:"text" help:"text or json." validate:"oneof=text json"`
	ShutdownTimeout time.Duration `name:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" default:"10s" help:"Graceful shutdown timeout." validate:"gt=0"`
	CardCacheTTL    time.Duration `name:"card-cache-ttl" env:"ECOPULSE_CARD_CACHE_TTL" default:"10m" help:"How long rendered score cards are cached." validate:"gt=0"`

	OpenAIAPIKey string `name:"openai-api-key" env:"OPENAI_API_KEY" help:"Enables narrated analysis when set."`
	OpenAIModel  string `name:"openai-model" env:"OPENAI_MODEL" default:"gpt-4o-mini" help:"Chat model for narrated analysis."`
}

var validate = validator.New()

// Validate checks field constraints and that the timezone resolves.
// kong calls it after parsing.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s violates %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone; empty or "Local" means the process zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Parse fills a Config from args and the environment.
func Parse(args []string, options ...kong.Option) (*Config, error) {
	var cfg Config
	parser, err := kong.New(&cfg, options...)
	if err != nil {
		return nil, err
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, err
	}
	return &cfg, nil
}
