package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/util"
)

var ErrNoAnswer = errors.New("no answer")

// Config описывает чужой HTTP API с ответами. В url, headers и data
// подставляются ${title}, ${type} и ${options} (варианты через перевод строки).
type Config struct {
	Name         string
	Homepage     string
	URL          string
	Method       string // GET (data уходит в query) или POST (data уходит JSON)
	Headers      map[string]string
	Data         map[string]string
	AnswerPath   string // gjson-путь к ответу; строка или массив
	QuestionPath string // gjson-путь к вопросу в ответе, необязателен
	ErrorPath    string // непустое значение по этому пути считается ошибкой
	Rate         float64
	Retries      int
	Timeout      time.Duration
}

type Option func(*Provider)

func WithHTTPClient(c *http.Client) Option { return func(p *Provider) { p.client = c } }
func WithLogger(l *zap.Logger) Option      { return func(p *Provider) { p.log = l } }

// WithBackoff задаёт паузы между повторами.
func WithBackoff(base, limit time.Duration) Option {
	return func(p *Provider) { p.baseDelay, p.maxDelay = base, limit }
}

type Provider struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
	exec    failsafe.Executor[*reply]

	baseDelay, maxDelay time.Duration
}

// reply — прочитанный ответ; тело закрыто сразу, чтобы повторы не текли.
type reply struct {
	status int
	body   []byte
}

func New(cfg Config, opts ...Option) (*Provider, error) {
	if cfg.Name == "" || cfg.URL == "" {
		return nil, errors.New("httpapi: name and url are required")
	}
	cfg.Method = strings.ToUpper(cfg.Method)
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.Method != http.MethodGet && cfg.Method != http.MethodPost {
		return nil, fmt.Errorf("httpapi: unsupported method %q", cfg.Method)
	}
	if cfg.AnswerPath == "" {
		cfg.AnswerPath = "answer"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	p := &Provider{
		cfg:       cfg,
		baseDelay: 200 * time.Millisecond,
		maxDelay:  3 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: cfg.Timeout}
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	p.log = p.log.With(zap.String("component", "httpapi"), zap.String("provider", cfg.Name))
	if cfg.Rate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	policy := retrypolicy.NewBuilder[*reply]().
		WithBackoff(p.baseDelay, p.maxDelay).
		WithMaxRetries(cfg.Retries).
		WithJitterFactor(0.1).
		HandleIf(func(r *reply, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			return r != nil && (r.status == http.StatusTooManyRequests || r.status >= 500)
		}).
		Build()
	p.exec = failsafe.With[*reply](policy)
	return p, nil
}

func (p *Provider) Name() string     { return p.cfg.Name }
func (p *Provider) Homepage() string { return p.cfg.Homepage }

func (p *Provider) Search(ctx context.Context, q answerer.Query) ([]answerer.Pair, error) {
	// итог последней попытки: после исчерпания повторов Get возвращает ошибку политики
	var (
		last    *reply
		lastErr error
	)
	r, err := p.exec.WithContext(ctx).Get(func() (*reply, error) {
		rr, err := p.do(ctx, q)
		last, lastErr = rr, err
		return rr, err
	})
	if lastErr != nil {
		return nil, lastErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if r == nil {
		r = last
	}
	if r == nil {
		if err == nil {
			err = ErrNoAnswer
		}
		return nil, err
	}
	if r.status < 200 || r.status >= 300 {
		return nil, fmt.Errorf("status %d: %s", r.status, snippet(r.body))
	}
	if err != nil {
		return nil, err
	}
	return p.parse(q, r.body)
}

func (p *Provider) do(ctx context.Context, q answerer.Query) (*reply, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	vars := templateVars(q)

	target := expand(p.cfg.URL, vars, url.QueryEscape)
	var body io.Reader
	if len(p.cfg.Data) > 0 {
		data := make(map[string]string, len(p.cfg.Data))
		for k, v := range p.cfg.Data {
			data[k] = expand(v, vars, nil)
		}
		if p.cfg.Method == http.MethodGet {
			u, err := url.Parse(target)
			if err != nil {
				return nil, fmt.Errorf("bad url: %w", err)
			}
			qs := u.Query()
			for k, v := range data {
				qs.Set(k, v)
			}
			u.RawQuery = qs.Encode()
			target = u.String()
		} else {
			b, _ := json.Marshal(data)
			body = bytes.NewReader(b)
		}
	}

	req, err := http.NewRequestWithContext(ctx, p.cfg.Method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, expand(v, vars, nil))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		p.log.Debug("upstream status", zap.Int("status", resp.StatusCode))
	}
	return &reply{status: resp.StatusCode, body: b}, nil
}

func (p *Provider) parse(q answerer.Query, body []byte) ([]answerer.Pair, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json: %s", snippet(body))
	}
	if p.cfg.ErrorPath != "" {
		if e := gjson.GetBytes(body, p.cfg.ErrorPath); failed(e) {
			return nil, fmt.Errorf("upstream error: %s", e.String())
		}
	}
	question := q.Title
	if p.cfg.QuestionPath != "" {
		if v := strings.TrimSpace(gjson.GetBytes(body, p.cfg.QuestionPath).String()); v != "" {
			question = v
		}
	}

	res := gjson.GetBytes(body, p.cfg.AnswerPath)
	var pairs []answerer.Pair
	add := func(v gjson.Result) {
		if s := strings.TrimSpace(v.String()); s != "" {
			pairs = append(pairs, answerer.Pair{Question: question, Answer: s})
		}
	}
	if res.IsArray() {
		for _, v := range res.Array() {
			add(v)
		}
	} else {
		add(res)
	}
	if len(pairs) == 0 {
		return nil, ErrNoAnswer
	}
	return pairs, nil
}

func templateVars(q answerer.Query) map[string]string {
	return map[string]string{
		"${title}":   q.Title,
		"${type}":    string(q.Type),
		"${options}": strings.Join(q.Options, "\n"),
	}
}

// expand подставляет переменные; escape применяется к значениям (для url).
func expand(s string, vars map[string]string, escape func(string) string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		if escape != nil {
			v = escape(v)
		}
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// failed: true, ненулевое число или непустая строка.
func failed(e gjson.Result) bool {
	switch e.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return e.Num != 0
	case gjson.String:
		return strings.TrimSpace(e.Str) != ""
	}
	return false
}

func snippet(b []byte) string {
	return util.Truncate(strings.TrimSpace(string(b)), 200)
}
