package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfig marks configuration problems detected before any work starts.
var ErrConfig = errors.New("invalid configuration")

// EnvPrefix namespaces every environment override, e.g. ECONFEED_DATA_DIR.
const EnvPrefix = "ECONFEED"

const defaultTimezone = "Asia/Seoul"

// Common contains settings shared by the collector and the API.
type Common struct {
	DataDir            string
	ElasticsearchAddr  string
	ElasticsearchIndex string
	MetricsAddr        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisPrefix        string
}

// Collector holds configuration for a collection run.
type Collector struct {
	Common
	ConfigDir          string
	TargetLanguage     string
	MaxEntries         int
	FetchTimeout       time.Duration
	UserAgent          string
	Retention          time.Duration
	TrendingWindow     time.Duration
	TrendingLimit      int
	Location           *time.Location
	PriorityCategories []string
	Translate          Translate
	KafkaBrokers       []string
	KafkaTopic         string
	Schedule           string
}

// Translate configures the translation client.
type Translate struct {
	Enabled   bool
	Endpoint  string
	RateLimit float64
	Timeout   time.Duration
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr    string
	DefaultPage int
	MaxPage     int
}

// SourcesPath returns the location of sources.json.
func (c *Collector) SourcesPath() string { return filepath.Join(c.ConfigDir, "sources.json") }

// CategoriesPath returns the location of categories.json.
func (c *Collector) CategoriesPath() string { return filepath.Join(c.ConfigDir, "categories.json") }

// TagsPath returns the location of the optional tags.json.
func (c *Collector) TagsPath() string { return filepath.Join(c.ConfigDir, "tags.json") }

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("elasticsearch.addr", "")
	v.SetDefault("elasticsearch.index", "econ-news")
	v.SetDefault("metrics_addr", "")

	v.SetDefault("config_dir", "configs")
	v.SetDefault("target_language", "ko")
	v.SetDefault("fetch.max_entries", 20)
	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.user_agent", "econ-news-radar/1.0")
	v.SetDefault("retention", "48h")
	v.SetDefault("trending.window", "6h")
	v.SetDefault("trending.limit", 20)
	v.SetDefault("timezone", defaultTimezone)
	v.SetDefault("priority_categories", []string{"금리", "거시경제", "정책"})
	v.SetDefault("translate.enabled", true)
	v.SetDefault("translate.endpoint", "https://translate.googleapis.com/translate_a/single")
	v.SetDefault("translate.rate_limit", 2.0)
	v.SetDefault("translate.timeout", "10s")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "econ_news")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "econfeed")
	v.SetDefault("schedule", "")

	v.SetDefault("api.bind_addr", "0.0.0.0:8080")
	v.SetDefault("api.page_size", 20)
	v.SetDefault("api.max_page_size", 100)
}

// newViper reads the optional YAML file and layers ECONFEED_* env vars on top.
// An explicit file must exist; the discovered ./config.yaml may be absent.
func newViper(file string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: read config file: %v", ErrConfig, err)
		}
	}
	return v, nil
}

func loadCommon(v *viper.Viper) Common {
	return Common{
		DataDir:            v.GetString("data_dir"),
		ElasticsearchAddr:  v.GetString("elasticsearch.addr"),
		ElasticsearchIndex: v.GetString("elasticsearch.index"),
		MetricsAddr:        v.GetString("metrics_addr"),
		RedisAddr:          v.GetString("redis.addr"),
		RedisPassword:      v.GetString("redis.password"),
		RedisDB:            v.GetInt("redis.db"),
		RedisPrefix:        v.GetString("redis.prefix"),
	}
}

// LoadCollector builds a Collector config from file and environment.
func LoadCollector(file string) (*Collector, error) {
	v, err := newViper(file)
	if err != nil {
		return nil, err
	}

	c := &Collector{
		Common:             loadCommon(v),
		ConfigDir:          v.GetString("config_dir"),
		TargetLanguage:     v.GetString("target_language"),
		MaxEntries:         v.GetInt("fetch.max_entries"),
		UserAgent:          v.GetString("fetch.user_agent"),
		TrendingLimit:      v.GetInt("trending.limit"),
		PriorityCategories: stringList(v, "priority_categories"),
		Translate: Translate{
			Enabled:   v.GetBool("translate.enabled"),
			Endpoint:  v.GetString("translate.endpoint"),
			RateLimit: v.GetFloat64("translate.rate_limit"),
		},
		KafkaBrokers: stringList(v, "kafka.brokers"),
		KafkaTopic:   strings.TrimSpace(v.GetString("kafka.topic")),
		Schedule:     v.GetString("schedule"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"fetch.timeout", &c.FetchTimeout},
		{"retention", &c.Retention},
		{"trending.window", &c.TrendingWindow},
		{"translate.timeout", &c.Translate.Timeout},
	}
	for _, d := range durations {
		if *d.dst, err = positiveDuration(v, d.key); err != nil {
			return nil, err
		}
	}

	if c.Location, err = loadLocation(v.GetString("timezone")); err != nil {
		return nil, err
	}

	if c.DataDir == "" {
		return nil, fmt.Errorf("%w: data_dir must not be empty", ErrConfig)
	}
	if c.ConfigDir == "" {
		return nil, fmt.Errorf("%w: config_dir must not be empty", ErrConfig)
	}
	if c.TargetLanguage == "" {
		return nil, fmt.Errorf("%w: target_language must not be empty", ErrConfig)
	}
	if c.MaxEntries <= 0 {
		return nil, fmt.Errorf("%w: fetch.max_entries must be positive", ErrConfig)
	}
	if c.TrendingLimit <= 0 {
		return nil, fmt.Errorf("%w: trending.limit must be positive", ErrConfig)
	}
	if c.TrendingWindow > c.Retention {
		return nil, fmt.Errorf("%w: trending.window cannot exceed retention", ErrConfig)
	}
	if c.Translate.Enabled && c.Translate.RateLimit <= 0 {
		return nil, fmt.Errorf("%w: translate.rate_limit must be positive", ErrConfig)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return nil, fmt.Errorf("%w: kafka.topic is required when brokers are set", ErrConfig)
	}

	return c, nil
}

// LoadAPI builds an API config from file and environment.
func LoadAPI(file string) (*API, error) {
	v, err := newViper(file)
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:      loadCommon(v),
		BindAddr:    v.GetString("api.bind_addr"),
		DefaultPage: v.GetInt("api.page_size"),
		MaxPage:     v.GetInt("api.max_page_size"),
	}

	if c.BindAddr == "" {
		return nil, fmt.Errorf("%w: api.bind_addr must not be empty", ErrConfig)
	}
	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("%w: api.page_size must be positive", ErrConfig)
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("%w: api.max_page_size must be positive", ErrConfig)
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("%w: api.page_size cannot exceed api.max_page_size", ErrConfig)
	}

	return c, nil
}

func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrConfig, key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrConfig, key)
	}
	return d, nil
}

// loadLocation falls back to a fixed +09:00 zone when the tz database lacks
// the default zone, as on minimal container images.
func loadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == defaultTimezone {
		return time.FixedZone("KST", 9*60*60), nil
	}
	return nil, fmt.Errorf("%w: timezone %q: %v", ErrConfig, name, err)
}

// stringList accepts either a YAML list or a comma separated string, which is
// how lists arrive from the environment.
func stringList(v *viper.Viper, key string) []string {
	if raw, ok := v.Get(key).(string); ok {
		return splitAndTrim(raw)
	}
	return v.GetStringSlice(key)
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
