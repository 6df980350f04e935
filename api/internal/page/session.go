package page

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"ocs-worker/api/internal/config"
	"ocs-worker/api/internal/upload"
	"ocs-worker/api/internal/worker"
)

const stableFor = 500 * time.Millisecond

// Session — вкладка с работой в браузере, управляемом через rod.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	cfg     config.BrowserConfig
	log     *zap.Logger
	owned   bool // браузер запущен нами, Close его гасит
}

// Open подключается к браузеру по ControlURL (или запускает локальный) и открывает pageURL.
func Open(ctx context.Context, cfg config.BrowserConfig, pageURL string, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	controlURL, owned := cfg.ControlURL, false
	if controlURL == "" {
		u, err := launcher.New().
			Headless(cfg.Headless).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL, owned = u, true
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	s := &Session{browser: browser, cfg: cfg, log: log, owned: owned}

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open %s: %w", pageURL, err)
	}
	s.page = page
	if err := s.wait(ctx); err != nil {
		s.Close()
		return nil, err
	}
	log.Info("page opened", zap.String("url", pageURL), zap.Bool("launched", owned))
	return s, nil
}

func (s *Session) wait(ctx context.Context) error {
	p := s.page.Context(ctx)
	if s.cfg.Timeout > 0 {
		p = p.Timeout(s.cfg.Timeout)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	_ = p.WaitStable(stableFor)
	return nil
}

// Items возвращает вопросы страницы в порядке документа.
func (s *Session) Items(ctx context.Context) ([]worker.Item, error) {
	els, err := s.page.Context(ctx).Elements(s.cfg.Selectors.Root)
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	return Items(len(els), func(ctx context.Context, i int) Node {
		return rodNode{el: els[i].Context(ctx)}
	}, s.cfg.Selectors), nil
}

// Items оборачивает корни вопросов в worker.Item. Извлечение повторяемо.
func Items(n int, root func(ctx context.Context, i int) Node, sel config.Selectors) []worker.Item {
	items := make([]worker.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, worker.ItemFunc(func(ctx context.Context) (worker.Elements, error) {
			return Extract(root(ctx, i), sel)
		}))
	}
	return items
}

// Callback — сохранение или сдача работы по решению upload.
func (s *Session) Callback() upload.Callback {
	return NewSubmitter(func(ctx context.Context, selector string) ([]Node, error) {
		els, err := s.page.Context(ctx).Elements(selector)
		if err != nil {
			return nil, err
		}
		return wrap(ctx, els), nil
	}, s.cfg.Selectors, s.log).Callback
}

func (s *Session) Close() {
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.owned && s.browser != nil {
		_ = s.browser.Close()
	}
}

// ----------------------------------------------------------------------------

var ErrNoButton = errors.New("button not found")

// Submitter жмёт «сохранить» или «сдать».
type Submitter struct {
	find func(ctx context.Context, selector string) ([]Node, error)
	sel  config.Selectors
	log  *zap.Logger
}

func NewSubmitter(find func(ctx context.Context, selector string) ([]Node, error), sel config.Selectors, log *zap.Logger) *Submitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{find: find, sel: sel, log: log}
}

func (s *Submitter) Callback(ctx context.Context, rate float64, uploadable bool) error {
	action, selector := upload.ActionSave, s.sel.Save
	if uploadable {
		action, selector = upload.ActionSubmit, s.sel.Submit
	}
	if selector == "" {
		s.log.Warn("no selector for action", zap.Stringer("action", action))
		return nil
	}
	nodes, err := s.find(ctx, selector)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%s %q: %w", action, selector, ErrNoButton)
	}
	if err := nodes[0].Click(); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	s.log.Info("work uploaded", zap.Stringer("action", action), zap.Float64("rate", rate))
	return nil
}
