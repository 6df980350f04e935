package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/match"
	"ocs-worker/api/internal/resolver"
)

var (
	ErrEmptyTitle = errors.New("empty question title")
	ErrTimeout    = errors.New("search timed out")
	ErrClosed     = errors.New("worker closed")
)

// Searcher — источник ответов; обычно *answerer.Aggregator.
type Searcher interface {
	Search(ctx context.Context, q answerer.Query) ([]answerer.Result, error)
}

// Elements — то, что извлечено со страницы для одного вопроса.
type Elements struct {
	Title   []string
	Type    answerer.QuestionType
	Options []resolver.Option
}

// Item — вопрос в очереди. Extract можно вызывать повторно.
type Item interface {
	Extract(ctx context.Context) (Elements, error)
}

type ItemFunc func(ctx context.Context) (Elements, error)

func (f ItemFunc) Extract(ctx context.Context) (Elements, error) { return f(ctx) }

// Recorder получает исход каждого вопроса (метрики).
type Recorder interface {
	ObserveItem(outcome string, took time.Duration)
}

const (
	OutcomeFinished     = "finished"
	OutcomeInconclusive = "inconclusive"
	OutcomeError        = "error"
)

type Option func(*Worker)

func WithLogger(l *zap.Logger) Option { return func(w *Worker) { w.log = l } }

func WithRecorder(r Recorder) Option { return func(w *Worker) { w.rec = r } }

// WithOnResult: fn получает копию каждого записанного результата.
func WithOnResult(fn func(Result)) Option { return func(w *Worker) { w.onResult = fn } }

// WithControl позволяет создать Control заранее (например, чтобы отдать его боту).
func WithControl(c *Control) Option { return func(w *Worker) { w.ctl = c } }

// Worker проходит очередь вопросов по одному: извлечение, поиск, разбор, пауза.
type Worker struct {
	id       string
	cfg      Config
	search   Searcher
	resolver *resolver.Resolver
	ctl      *Control
	log      *zap.Logger
	rec      Recorder
	onResult func(Result)

	mu      sync.RWMutex
	results []Result
}

func New(cfg Config, search Searcher, apply resolver.ApplyFunc, opts ...Option) (*Worker, error) {
	if search == nil {
		return nil, errors.New("worker: searcher is required")
	}
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, fmt.Errorf("worker config: %w", err)
	}
	w := &Worker{
		id:       uuid.NewString(),
		cfg:      cfg,
		search:   search,
		resolver: resolver.New(cfg.MatchMode, cfg.Separators, apply),
	}
	for _, o := range opts {
		o(w)
	}
	if w.ctl == nil {
		w.ctl = NewControl()
	}
	if w.log == nil {
		w.log = zap.NewNop()
	}
	w.log = w.log.With(zap.String("component", "worker"), zap.String("run_id", w.id))
	return w, nil
}

func (w *Worker) ID() string        { return w.id }
func (w *Worker) Control() *Control { return w.ctl }
func (w *Worker) Config() Config    { return w.cfg }
func (w *Worker) State() State      { return w.ctl.State() }

// Snapshot — копия накопленных результатов.
func (w *Worker) Snapshot() []Result {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Result, len(w.results))
	for i, r := range w.results {
		out[i] = r.clone()
	}
	return out
}

// Run обрабатывает items по очереди. Ждёт start, уважает stop/continuate,
// после close возвращает накопленное без ошибки. Ошибка вопроса прерывает
// прогон только при StopWhenError.
func (w *Worker) Run(ctx context.Context, items []Item) ([]Result, error) {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-w.ctl.Closed():
			cancel(ErrClosed)
		case <-runCtx.Done():
		}
	}()

	w.log.Info("run started", zap.Int("items", len(items)), zap.Stringer("config", w.cfg))
	for i, item := range items {
		if err := w.ctl.WaitRunning(runCtx); err != nil {
			return w.stop(runCtx, err)
		}

		start := time.Now()
		res := w.process(runCtx, i, item)
		if runCtx.Err() != nil {
			// закрыли во время обработки: результат не записываем
			return w.stop(runCtx, context.Cause(runCtx))
		}
		if !w.ctl.ifOpen(func() {
			w.mu.Lock()
			w.results = append(w.results, res)
			w.mu.Unlock()
		}) {
			return w.stop(runCtx, ErrClosed)
		}
		w.report(i, res, time.Since(start))

		if res.Err != nil && w.cfg.StopWhenError {
			w.log.Warn("run aborted", zap.Int("item", i), zap.Error(res.Err))
			return w.Snapshot(), res.Err
		}
		if i < len(items)-1 {
			if err := w.ctl.Sleep(runCtx, w.cfg.Period); err != nil {
				return w.stop(runCtx, err)
			}
		}
	}
	out := w.Snapshot()
	w.log.Info("run finished", zap.Int("results", len(out)))
	return out, nil
}

// stop: close — штатное завершение, отмена внешнего контекста — ошибка.
func (w *Worker) stop(runCtx context.Context, err error) ([]Result, error) {
	if errors.Is(err, ErrClosed) || errors.Is(context.Cause(runCtx), ErrClosed) || w.ctl.State() == Closed {
		out := w.Snapshot()
		w.log.Info("run closed", zap.Int("results", len(out)))
		return out, nil
	}
	return w.Snapshot(), err
}

func (w *Worker) report(i int, res Result, took time.Duration) {
	outcome := OutcomeInconclusive
	switch {
	case res.Err != nil:
		outcome = OutcomeError
		w.log.Warn("item failed", zap.Int("item", i), zap.String("question", res.Question), zap.Error(res.Err))
	case res.Finished():
		outcome = OutcomeFinished
		w.log.Debug("item finished", zap.Int("item", i), zap.String("question", res.Question))
	default:
		w.log.Debug("item inconclusive", zap.Int("item", i), zap.String("question", res.Question), zap.Any("diagnostics", res.Decision.Diagnostics))
	}
	if w.rec != nil {
		w.rec.ObserveItem(outcome, took)
	}
	if w.onResult != nil {
		w.onResult(res.clone())
	}
}

// process делает до cfg.Retry попыток; записывается последняя.
func (w *Worker) process(ctx context.Context, i int, item Item) Result {
	var res Result
	for attempt := 1; attempt <= w.cfg.Retry; attempt++ {
		res = w.attempt(ctx, item)
		if res.Err == nil || ctx.Err() != nil {
			break
		}
		if attempt < w.cfg.Retry {
			w.log.Debug("retrying item", zap.Int("item", i), zap.Int("attempt", attempt), zap.Error(res.Err))
		}
	}
	return res
}

func (w *Worker) attempt(ctx context.Context, item Item) Result {
	var res Result
	els, err := item.Extract(ctx)
	if err != nil {
		res.Err = fmt.Errorf("extract: %w", err)
		return res
	}
	res.Type = els.Type
	res.Question = w.title(els.Title)
	if res.Question == "" {
		res.Err = ErrEmptyTitle
		return res
	}

	res.Requesting = true
	q := answerer.Query{Type: els.Type, Title: res.Question, Options: optionTexts(els.Options)}
	sctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	infos, err := w.search.Search(sctx, q)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s", ErrTimeout, w.cfg.Timeout)
		}
		res.Err = err
		return res
	}
	res.Requesting = false
	res.SearchInfos = infos

	// применение ответа не прерывается сигналами
	res.Resolving = true
	dec, err := w.resolver.Resolve(context.WithoutCancel(ctx), els.Type, infos, els.Options)
	res.Decision = dec
	if err != nil {
		res.Err = err
		return res
	}
	res.Resolving = false
	finish := dec.Finish
	res.Finish = &finish
	return res
}

// title склеивает непустые части заголовка и вычищает лишние слова.
func (w *Worker) title(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	t := strings.Join(kept, ",")
	t = match.RemoveWords(match.NoWrap(t), w.cfg.RedundantWords)
	return strings.TrimSpace(t)
}

func optionTexts(opts []resolver.Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = strings.TrimSpace(o.Text())
	}
	return out
}
