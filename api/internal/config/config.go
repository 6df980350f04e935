package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ocs-worker/api/internal/resolver"
	"ocs-worker/api/internal/upload"
	"ocs-worker/api/internal/worker"
)

// Порядок: значения по умолчанию → YAML → переменные окружения OCS_*.

type Config struct {
	Worker    WorkerConfig     `yaml:"worker"`
	Answerers []AnswererConfig `yaml:"answerers"`
	Cache     CacheConfig      `yaml:"cache"`
	Database  DatabaseConfig   `yaml:"database"`
	Telegram  TelegramConfig   `yaml:"telegram"`
	Browser   BrowserConfig    `yaml:"browser"`
	Log       LogConfig        `yaml:"log"`
	HTTP      HTTPConfig       `yaml:"http"`
}

type WorkerConfig struct {
	MatchMode        string        `yaml:"match_mode"`
	AnswerSeparators []string      `yaml:"answer_separators"`
	RedundantWords   []string      `yaml:"redundant_words"`
	Period           time.Duration `yaml:"period"`
	Timeout          time.Duration `yaml:"timeout"`
	Retry            int           `yaml:"retry"`
	Upload           string        `yaml:"upload"` // save | nomove | force | 0..100
	StopWhenError    bool          `yaml:"stop_when_error"`
}

// AnswererConfig — один источник ответов.
type AnswererConfig struct {
	Kind     string `yaml:"kind"` // http | gemini | openai | deepseek
	Name     string `yaml:"name"`
	Homepage string `yaml:"homepage"`

	// http
	URL          string            `yaml:"url"`
	Method       string            `yaml:"method"`
	Headers      map[string]string `yaml:"headers"`
	Data         map[string]string `yaml:"data"`
	AnswerPath   string            `yaml:"answer_path"`
	QuestionPath string            `yaml:"question_path"`
	ErrorPath    string            `yaml:"error_path"`

	// llm
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`

	Rate    float64       `yaml:"rate"` // запросов в секунду, 0 — без ограничения
	Retries int           `yaml:"retries"`
	Timeout time.Duration `yaml:"timeout"`
	Cache   bool          `yaml:"cache"`
}

type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type DatabaseConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxLifetime  time.Duration `yaml:"max_lifetime"`
	Retention    time.Duration `yaml:"retention"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type BrowserConfig struct {
	ControlURL string        `yaml:"control_url"` // пусто — запустить локальный браузер
	Headless   bool          `yaml:"headless"`
	Timeout    time.Duration `yaml:"timeout"`
	Selectors  Selectors     `yaml:"selectors"`
}

// Selectors — CSS-селекторы элементов вопроса.
type Selectors struct {
	Root    string            `yaml:"root"`
	Title   string            `yaml:"title"`
	Options string            `yaml:"options"`
	Type    string            `yaml:"type"`
	TypeMap map[string]string `yaml:"type_map"` // текст/атрибут типа → single|multiple|judgement|completion
	Input   string            `yaml:"input"`
	Save    string            `yaml:"save"`
	Submit  string            `yaml:"submit"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

type HTTPConfig struct {
	Port string `yaml:"port"`
}

func Default() *Config {
	wc := worker.DefaultConfig()
	return &Config{
		Worker: WorkerConfig{
			MatchMode:        string(wc.MatchMode),
			AnswerSeparators: append([]string(nil), wc.Separators...),
			Period:           wc.Period,
			Timeout:          wc.Timeout,
			Retry:            wc.Retry,
			Upload:           string(upload.Save),
		},
		Cache:    CacheConfig{TTL: 24 * time.Hour},
		Database: DatabaseConfig{MaxOpenConns: 10, MaxLifetime: time.Hour, Retention: 30 * 24 * time.Hour},
		Browser: BrowserConfig{
			Headless: true,
			Timeout:  10 * time.Second,
			Selectors: Selectors{
				Root:    ".question",
				Title:   ".question-title",
				Options: ".question-option",
				Input:   "textarea, input[type=text]",
			},
		},
		Log:  LogConfig{Level: "info", Format: "json"},
		HTTP: HTTPConfig{Port: "8080"},
	}
}

// Load читает path (если файл есть) и применяет окружение.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = resolveDSN()
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	w := &c.Worker
	w.MatchMode = getEnv("OCS_MATCH_MODE", w.MatchMode)
	if v := getEnv("OCS_ANSWER_SEPARATORS", ""); v != "" {
		w.AnswerSeparators = splitList(v)
	}
	if v := getEnv("OCS_REDUNDANT_WORDS", ""); v != "" {
		w.RedundantWords = splitList(v)
	}
	w.Upload = getEnv("OCS_UPLOAD", w.Upload)

	var err error
	if w.Period, err = envDuration("OCS_PERIOD", w.Period); err != nil {
		return err
	}
	if w.Timeout, err = envDuration("OCS_TIMEOUT", w.Timeout); err != nil {
		return err
	}
	if w.Retry, err = envInt("OCS_RETRY", w.Retry); err != nil {
		return err
	}
	if v := getEnv("OCS_STOP_WHEN_ERROR", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OCS_STOP_WHEN_ERROR: %w", err)
		}
		w.StopWhenError = b
	}

	c.Cache.Addr = getEnv("OCS_REDIS_ADDR", c.Cache.Addr)
	c.Cache.Password = getEnv("OCS_REDIS_PASSWORD", c.Cache.Password)
	c.Database.DSN = getEnv("DATABASE_URL", c.Database.DSN)
	c.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.Token)
	if c.Telegram.ChatID, err = envInt64("TELEGRAM_CHAT_ID", c.Telegram.ChatID); err != nil {
		return err
	}
	c.Browser.ControlURL = getEnv("OCS_BROWSER_URL", c.Browser.ControlURL)
	c.Log.Level = getEnv("OCS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("OCS_LOG_FORMAT", c.Log.Format)
	// платформа задаёт PORT
	c.HTTP.Port = getEnv("PORT", c.HTTP.Port)

	// ключи LLM по виду источника
	for i := range c.Answerers {
		a := &c.Answerers[i]
		if a.APIKey != "" {
			continue
		}
		switch a.Kind {
		case "gemini":
			a.APIKey = getEnv("GEMINI_API_KEY", "")
		case "openai":
			a.APIKey = getEnv("OPENAI_API_KEY", "")
		case "deepseek":
			a.APIKey = getEnv("DEEPSEEK_API_KEY", "")
		}
	}
	return nil
}

// Validate возвращает первую найденную проблему.
func (c *Config) Validate() error {
	if _, err := resolver.ParseMatchMode(c.Worker.MatchMode); err != nil {
		return fmt.Errorf("worker.match_mode: %w", err)
	}
	if _, err := upload.ParsePolicy(c.Worker.Upload); err != nil {
		return fmt.Errorf("worker.upload: %w", err)
	}
	if c.Worker.Period < 0 {
		return errors.New("worker.period must not be negative")
	}
	if c.Worker.Timeout <= 0 {
		return errors.New("worker.timeout must be positive")
	}
	if len(c.Answerers) == 0 {
		return errors.New("answerers: at least one source is required")
	}
	names := map[string]bool{}
	for i, a := range c.Answerers {
		if a.Name == "" {
			return fmt.Errorf("answerers[%d]: name is required", i)
		}
		if names[a.Name] {
			return fmt.Errorf("answerers[%d]: duplicate name %q", i, a.Name)
		}
		names[a.Name] = true
		switch a.Kind {
		case "http":
			if a.URL == "" {
				return fmt.Errorf("answerers[%d] %s: url is required", i, a.Name)
			}
			if m := strings.ToUpper(a.Method); m != "" && m != "GET" && m != "POST" {
				return fmt.Errorf("answerers[%d] %s: unsupported method %q", i, a.Name, a.Method)
			}
		case "gemini", "openai", "deepseek":
			if a.APIKey == "" {
				return fmt.Errorf("answerers[%d] %s: api key is required", i, a.Name)
			}
		default:
			return fmt.Errorf("answerers[%d] %s: unknown kind %q", i, a.Name, a.Kind)
		}
		if a.Cache && c.Cache.Addr == "" {
			return fmt.Errorf("answerers[%d] %s: cache enabled but cache.addr is empty", i, a.Name)
		}
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when token is set")
	}
	return nil
}

// WorkerConfig переводит секцию worker в конфиг движка.
func (c *Config) WorkerConfig() worker.Config {
	return worker.Config{
		MatchMode:      resolver.MatchMode(c.Worker.MatchMode),
		Separators:     c.Worker.AnswerSeparators,
		RedundantWords: c.Worker.RedundantWords,
		Period:         c.Worker.Period,
		Timeout:        c.Worker.Timeout,
		Retry:          c.Worker.Retry,
		StopWhenError:  c.Worker.StopWhenError,
	}
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	// голое число — миллисекунды
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func envInt(k string, def int) (int, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func envInt64(k string, def int64) (int64, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveDSN собирает DSN из POSTGRES_* / PG*. Пустая строка, если база не настроена.
func resolveDSN() string {
	pass := os.Getenv("POSTGRES_PASSWORD")
	host := getEnv("PGHOST", "")
	if host == "" && pass == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "ocs"), pass),
		Host:     net.JoinHostPort(getEnv("PGHOST", "localhost"), getEnv("PGPORT", "5432")),
		Path:     "/" + getEnv("POSTGRES_DB", "ocs"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SafeDSN — DSN без пароля, для логов.
func SafeDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	host, port := u.Host, ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, u.User.Username())
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, u.User.Username())
}
