package telegram

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Updater — источник апдейтов (long polling). *tgbotapi.BotAPI подходит.
type Updater interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// Poller — устойчивый long polling с backoff, без log.Fatal/os.Exit.
type Poller struct {
	Bot     Updater
	Log     *zap.Logger
	Timeout int // long polling timeout (sec)

	baseDelay time.Duration
	maxDelay  time.Duration
	idle      time.Duration
}

func NewPoller(bot Updater, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		Bot:       bot,
		Log:       log,
		Timeout:   30,
		baseDelay: 1 * time.Second,
		maxDelay:  15 * time.Second,
		idle:      200 * time.Millisecond,
	}
}

// Run читает апдейты до отмены ctx.
func (p *Poller) Run(ctx context.Context, handle func(tgbotapi.Update)) {
	offset := 0
	for {
		if ctx.Err() != nil {
			p.Log.Info("polling: context cancelled")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = p.Timeout

		updates, err := p.Bot.GetUpdates(u)
		if err != nil {
			d := retryDelayFromError(err)
			if d < p.baseDelay {
				d = p.baseDelay
			}
			if d > p.maxDelay {
				d = p.maxDelay
			}
			p.Log.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			if !sleep(ctx, d) {
				return
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 && !sleep(ctx, p.idle) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
