package worker

import (
	"fmt"
	"time"

	"ocs-worker/api/internal/match"
	"ocs-worker/api/internal/resolver"
)

const (
	DefaultPeriod  = 3 * time.Second
	DefaultTimeout = 30 * time.Second
)

// Config — параметры прогона. Проверяется и дополняется значениями по умолчанию один раз в New.
type Config struct {
	MatchMode      resolver.MatchMode
	Separators     []string
	RedundantWords []string // вырезаются из заголовка перед поиском
	Period         time.Duration
	Timeout        time.Duration
	Retry          int // число попыток на вопрос, минимум одна
	StopWhenError  bool
}

func DefaultConfig() Config {
	return Config{
		MatchMode:  resolver.Similar,
		Separators: match.DefaultSeparators,
		Period:     DefaultPeriod,
		Timeout:    DefaultTimeout,
		Retry:      1,
	}
}

func (c Config) normalize() (Config, error) {
	mode, err := resolver.ParseMatchMode(string(c.MatchMode))
	if err != nil {
		return c, err
	}
	c.MatchMode = mode
	if len(c.Separators) == 0 {
		c.Separators = match.DefaultSeparators
	}
	if c.Period < 0 {
		c.Period = DefaultPeriod
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retry < 1 {
		c.Retry = 1
	}
	return c, nil
}

func (c Config) String() string {
	return fmt.Sprintf("mode=%s period=%s timeout=%s retry=%d stop_when_error=%t",
		c.MatchMode, c.Period, c.Timeout, c.Retry, c.StopWhenError)
}
