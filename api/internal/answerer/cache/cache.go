package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ocs-worker/api/internal/answerer"
)

const (
	keyPrefix  = "ocs:answer"
	DefaultTTL = 24 * time.Hour
)

// Observer получает попадания и промахи кэша.
type Observer interface {
	ObserveCache(provider string, hit bool)
}

// Provider — кэш ответов поверх любого источника. Ошибки Redis только логируются,
// ошибки источника не кэшируются.
type Provider struct {
	next   answerer.Provider
	client goredis.UniversalClient
	ttl    time.Duration
	log    *zap.Logger
	obs    Observer
}

func Wrap(next answerer.Provider, client goredis.UniversalClient, ttl time.Duration, log *zap.Logger) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{next: next, client: client, ttl: ttl, log: log}
}

func (p *Provider) WithObserver(o Observer) *Provider {
	p.obs = o
	return p
}

func (p *Provider) Name() string     { return p.next.Name() }
func (p *Provider) Homepage() string { return p.next.Homepage() }

func (p *Provider) Search(ctx context.Context, q answerer.Query) ([]answerer.Pair, error) {
	key := Key(p.next.Name(), q)

	raw, err := p.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var pairs []answerer.Pair
		if err := json.Unmarshal(raw, &pairs); err == nil {
			p.observe(true)
			return pairs, nil
		}
		p.log.Warn("cache: bad entry", zap.String("key", key))
	case errors.Is(err, goredis.Nil):
	default:
		p.log.Warn("cache: get failed", zap.String("provider", p.Name()), zap.Error(err))
	}
	p.observe(false)

	pairs, err := p.next.Search(ctx, q)
	if err != nil || len(pairs) == 0 {
		return pairs, err
	}
	if b, err := json.Marshal(pairs); err == nil {
		if err := p.client.Set(ctx, key, b, p.ttl).Err(); err != nil {
			p.log.Warn("cache: set failed", zap.String("provider", p.Name()), zap.Error(err))
		}
	}
	return pairs, nil
}

func (p *Provider) observe(hit bool) {
	if p.obs != nil {
		p.obs.ObserveCache(p.next.Name(), hit)
	}
}

// Key — ключ записи: ocs:answer:<provider>:<type>:<sha256(title)>.
func Key(provider string, q answerer.Query) string {
	sum := sha256.Sum256([]byte(q.Title))
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, provider, q.Type, hex.EncodeToString(sum[:]))
}
