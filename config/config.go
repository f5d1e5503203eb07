package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"vlogclip/internal/appdirs"
	"vlogclip/log"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
)

const (
	StrategyFixed      = "fixed"
	StrategyHighlights = "highlights"

	BackendMemory = "memory"
	BackendRedis  = "redis"

	CaptionsTemplate = "template"
	CaptionsOpenAI   = "openai"

	// HardBatchLimit caps batch.max_videos no matter what the file says.
	HardBatchLimit = 6
)

type App struct {
	Proxy       string   `toml:"proxy"`
	CookiesFile string   `toml:"cookies_file"`
	DefaultPlan string   `toml:"default_plan"`
	ParsedProxy *url.URL `toml:"-"`
}

type Server struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// PublicBaseUrl prefixes clip download links; empty means relative links.
	PublicBaseUrl string `toml:"public_base_url"`
}

type Paths struct {
	ClipDir string `toml:"clip_dir"`
	TempDir string `toml:"temp_dir"`
	DBPath  string `toml:"db_path"`
}

type Ffmpeg struct {
	Path      string `toml:"path"`
	ProbePath string `toml:"probe_path"`
}

type Clip struct {
	Strategy           string  `toml:"strategy"`
	StartOffset        float64 `toml:"start_offset"`
	Duration           float64 `toml:"duration"`
	PlaceholderSeconds float64 `toml:"placeholder_seconds"`
	PlaceholderColor   string  `toml:"placeholder_color"`
	MaxSourceHeight    int     `toml:"max_source_height"`
	AssumedSourceBytes int64   `toml:"assumed_source_bytes"`
	HighlightCount     int     `toml:"highlight_count"`
}

type Batch struct {
	MaxVideos          int     `toml:"max_videos"`
	Parallelism        int     `toml:"parallelism"`
	MemberDelaySeconds float64 `toml:"member_delay_seconds"`
}

type Jobs struct {
	Backend   string `toml:"backend"`
	MaxActive int    `toml:"max_active"`
	Workers   int    `toml:"workers"`
	QueueSize int    `toml:"queue_size"`
	Retain    int    `toml:"retain"`
}

type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Queue    string `toml:"queue"`
}

type Progress struct {
	ThrottleMs int `toml:"throttle_ms"`
}

type Captions struct {
	Provider  string            `toml:"provider"`
	Templates map[string]string `toml:"templates"`
}

type Llm struct {
	BaseUrl string `toml:"base_url"`
	ApiKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

// Plan overrides one entry of the built-in plan table. Zero fields keep the built-in value.
type Plan struct {
	MaxBatch        int     `toml:"max_batch"`
	MaxClipSeconds  float64 `toml:"max_clip_seconds"`
	Width           int     `toml:"width"`
	Height          int     `toml:"height"`
	Bitrate         string  `toml:"bitrate"`
	Watermark       string  `toml:"watermark"`
	MaxSourceHeight int     `toml:"max_source_height"`
}

type Oss struct {
	Enabled         bool   `toml:"enabled"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyId     string `toml:"access_key_id"`
	AccessKeySecret string `toml:"access_key_secret"`
	Prefix          string `toml:"prefix"`
	PublicBaseUrl   string `toml:"public_base_url"`
}

type Config struct {
	App      App             `toml:"app"`
	Server   Server          `toml:"server"`
	Paths    Paths           `toml:"paths"`
	Ffmpeg   Ffmpeg          `toml:"ffmpeg"`
	Clip     Clip            `toml:"clip"`
	Batch    Batch           `toml:"batch"`
	Jobs     Jobs            `toml:"jobs"`
	Redis    Redis           `toml:"redis"`
	Progress Progress        `toml:"progress"`
	Captions Captions        `toml:"captions"`
	Llm      Llm             `toml:"llm"`
	Plans    map[string]Plan `toml:"plans"`
	Oss      Oss             `toml:"oss"`
}

var Conf = defaultConfig()

var resolveConfigPath = func() (string, error) {
	paths, err := appdirs.Resolve()
	if err != nil {
		return "", err
	}
	return paths.ConfigFile, nil
}

func DefaultCaptionTemplates() map[string]string {
	return map[string]string{
		"tiktok":    "🔥 Check out this awesome moment from {title30}... #trending",
		"twitter":   "Amazing highlight from this YouTube video by {author}",
		"linkedin":  "Professional insights from content by {author}",
		"instagram": "✨ {label} from {title30} #reels",
	}
}

func defaultConfig() Config {
	return Config{
		App: App{
			DefaultPlan: "pro",
		},
		Server: Server{
			Host: "127.0.0.1",
			Port: 8888,
		},
		Ffmpeg: Ffmpeg{
			Path:      "ffmpeg",
			ProbePath: "ffprobe",
		},
		Clip: Clip{
			Strategy:           StrategyFixed,
			StartOffset:        30,
			Duration:           10,
			PlaceholderSeconds: 10,
			PlaceholderColor:   "blue",
			MaxSourceHeight:    720,
			AssumedSourceBytes: 10 * 1024 * 1024,
			HighlightCount:     3,
		},
		Batch: Batch{
			MaxVideos:   HardBatchLimit,
			Parallelism: 1,
		},
		Jobs: Jobs{
			Backend:   BackendMemory,
			MaxActive: 1,
			Workers:   2,
			QueueSize: 16,
			Retain:    100,
		},
		Redis: Redis{
			Addr:  "127.0.0.1:6379",
			Queue: "clips",
		},
		Progress: Progress{
			ThrottleMs: 250,
		},
		Captions: Captions{
			Provider:  CaptionsTemplate,
			Templates: DefaultCaptionTemplates(),
		},
		Llm: Llm{
			BaseUrl: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
	}
}

func ResolveConfigPath() (string, error) {
	return resolveConfigPath()
}

// LoadOrCreateConfig reads the config file over the defaults. A missing file is
// written out with defaults and reported as created.
func LoadOrCreateConfig() (bool, error) {
	configPath, err := resolveConfigPath()
	if err != nil {
		return false, fmt.Errorf("resolve config path: %w", err)
	}

	Conf = defaultConfig()
	if _, statErr := os.Stat(configPath); statErr != nil {
		if !errors.Is(statErr, os.ErrNotExist) {
			return false, fmt.Errorf("stat config %s: %w", configPath, statErr)
		}
		log.GetLogger().Info("config file not found, writing defaults", zap.String("path", configPath))
		if err = SaveConfig(); err != nil {
			return false, err
		}
		applyEnvOverrides(&Conf, os.Getenv)
		return true, nil
	}

	if _, err = toml.DecodeFile(configPath, &Conf); err != nil {
		return false, fmt.Errorf("decode config %s: %w", configPath, err)
	}
	if len(Conf.Captions.Templates) == 0 {
		Conf.Captions.Templates = DefaultCaptionTemplates()
	}
	applyEnvOverrides(&Conf, os.Getenv)
	log.GetLogger().Info("config loaded", zap.String("path", configPath))
	return false, nil
}

func SaveConfig() error {
	configPath, err := resolveConfigPath()
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer file.Close()

	if err = toml.NewEncoder(file).Encode(Conf); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

func applyEnvOverrides(c *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("VLOGCLIP_HOST", &c.Server.Host)
	num("VLOGCLIP_PORT", &c.Server.Port)
	str("VLOGCLIP_PROXY", &c.App.Proxy)
	str("VLOGCLIP_COOKIES_FILE", &c.App.CookiesFile)
	str("VLOGCLIP_DEFAULT_PLAN", &c.App.DefaultPlan)
	str("VLOGCLIP_FFMPEG_PATH", &c.Ffmpeg.Path)
	str("VLOGCLIP_JOBS_BACKEND", &c.Jobs.Backend)
	str("VLOGCLIP_REDIS_ADDR", &c.Redis.Addr)
	str("VLOGCLIP_REDIS_PASSWORD", &c.Redis.Password)
	str("VLOGCLIP_LLM_API_KEY", &c.Llm.ApiKey)
	str("VLOGCLIP_OSS_ACCESS_KEY_ID", &c.Oss.AccessKeyId)
	str("VLOGCLIP_OSS_ACCESS_KEY_SECRET", &c.Oss.AccessKeySecret)
}

// CheckConfig validates Conf and fills derived fields such as ParsedProxy.
func CheckConfig() error {
	c := &Conf

	if c.App.Proxy != "" {
		parsed, err := url.Parse(c.App.Proxy)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("invalid app.proxy %q", c.App.Proxy)
		}
		c.App.ParsedProxy = parsed
	} else {
		c.App.ParsedProxy = nil
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}

	switch c.Clip.Strategy {
	case StrategyFixed, StrategyHighlights:
	case "":
		c.Clip.Strategy = StrategyFixed
	default:
		return fmt.Errorf("unknown clip.strategy %q", c.Clip.Strategy)
	}
	if c.Clip.StartOffset < 0 {
		return fmt.Errorf("clip.start_offset must not be negative")
	}
	if c.Clip.Duration <= 0 {
		return fmt.Errorf("clip.duration must be positive")
	}
	if c.Clip.PlaceholderSeconds <= 0 {
		c.Clip.PlaceholderSeconds = c.Clip.Duration
	}
	if c.Clip.AssumedSourceBytes <= 0 {
		c.Clip.AssumedSourceBytes = 10 * 1024 * 1024
	}

	if c.Batch.MaxVideos <= 0 || c.Batch.MaxVideos > HardBatchLimit {
		return fmt.Errorf("batch.max_videos must be between 1 and %d", HardBatchLimit)
	}
	if c.Batch.Parallelism <= 0 {
		c.Batch.Parallelism = 1
	}
	if c.Batch.MemberDelaySeconds < 0 {
		return fmt.Errorf("batch.member_delay_seconds must not be negative")
	}

	switch c.Jobs.Backend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required for the redis job backend")
		}
	default:
		return fmt.Errorf("unknown jobs.backend %q", c.Jobs.Backend)
	}
	if c.Jobs.MaxActive <= 0 {
		c.Jobs.MaxActive = 1
	}

	switch c.Captions.Provider {
	case CaptionsTemplate, "":
		c.Captions.Provider = CaptionsTemplate
	case CaptionsOpenAI:
		if c.Llm.ApiKey == "" {
			log.GetLogger().Warn("captions.provider is openai but llm.api_key is empty, falling back to templates")
			c.Captions.Provider = CaptionsTemplate
		}
	default:
		return fmt.Errorf("unknown captions.provider %q", c.Captions.Provider)
	}

	if c.Oss.Enabled && (c.Oss.Bucket == "" || c.Oss.Region == "" || c.Oss.AccessKeyId == "" || c.Oss.AccessKeySecret == "") {
		return fmt.Errorf("oss is enabled but region, bucket or credentials are missing")
	}

	return nil
}
