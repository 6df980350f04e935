package answerer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Observer получает статистику по каждому вызову источника (метрики).
type Observer interface {
	ObserveProvider(name string, took time.Duration, err error)
}

// Aggregator опрашивает все источники параллельно и собирает их ответы.
type Aggregator struct {
	providers []Provider
	log       *zap.Logger
	observer  Observer
}

func NewAggregator(log *zap.Logger, providers ...Provider) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		providers: providers,
		log:       log.With(zap.String("component", "aggregator")),
	}
}

// WithObserver подключает наблюдателя; возвращает тот же агрегатор.
func (a *Aggregator) WithObserver(o Observer) *Aggregator {
	a.observer = o
	return a
}

// Providers — список источников в порядке конфигурации.
func (a *Aggregator) Providers() []Provider {
	return append([]Provider(nil), a.providers...)
}

// Search вызывает каждый источник в отдельной горутине.
// Ошибка или паника источника попадает в его Result.Err, остальные продолжают работу.
// Порядок результатов совпадает с порядком источников.
// Если ctx завершился раньше, возвращается ctx.Err(), поздние ответы отбрасываются.
func (a *Aggregator) Search(ctx context.Context, q Query) ([]Result, error) {
	results := make([]Result, len(a.providers))
	var g errgroup.Group
	for i, p := range a.providers {
		g.Go(func() error {
			// каждая горутина пишет только в свой слот
			results[i] = a.call(ctx, p, q)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return results, nil
	case <-ctx.Done():
		a.log.Debug("search abandoned", zap.String("title", q.Title), zap.Error(ctx.Err()))
		return nil, ctx.Err()
	}
}

func (a *Aggregator) call(ctx context.Context, p Provider, q Query) (res Result) {
	res = Result{Name: p.Name(), Homepage: p.Homepage()}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Pairs = nil
			res.Err = &ProviderError{Provider: res.Name, Err: fmt.Errorf("panic: %v", r)}
		}
		if res.Err != nil {
			a.log.Warn("provider failed", zap.String("provider", res.Name), zap.Error(res.Err))
		}
		if a.observer != nil {
			a.observer.ObserveProvider(res.Name, time.Since(start), res.Err)
		}
	}()

	pairs, err := p.Search(ctx, q)
	if err != nil {
		res.Err = &ProviderError{Provider: res.Name, Err: err}
		return res
	}
	res.Pairs = pairs
	return res
}
