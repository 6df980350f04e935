package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/upload"
	"ocs-worker/api/internal/worker"
)

type fakeBot struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		return ""
	}
	return b.sent[len(b.sent)-1].Text
}

type fakeWorker struct {
	ctl     *worker.Control
	results []worker.Result
}

func (w *fakeWorker) Control() *worker.Control  { return w.ctl }
func (w *fakeWorker) Snapshot() []worker.Result { return w.results }

func command(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func TestRouterCommands(t *testing.T) {
	bot := &fakeBot{}
	w := &fakeWorker{ctl: worker.NewControl()}
	r := &Router{Bot: bot, ChatID: 7, Worker: w}

	steps := []struct {
		cmd   string
		state worker.State
		reply string
	}{
		{"/stop", worker.Idle, "недоступна"},
		{"/start", worker.Running, "idle → running"},
		{"/stop", worker.Paused, "running → paused"},
		{"/continue", worker.Running, "paused → running"},
		{"/close", worker.Closed, "running → closed"},
		{"/start", worker.Closed, "недоступна"},
	}
	for _, s := range steps {
		r.HandleUpdate(command(7, s.cmd))
		assert.Equal(t, s.state, w.ctl.State(), s.cmd)
		assert.Contains(t, bot.last(), s.reply, s.cmd)
	}
}

func TestRouterIgnoresForeignChat(t *testing.T) {
	bot := &fakeBot{}
	w := &fakeWorker{ctl: worker.NewControl()}
	r := &Router{Bot: bot, ChatID: 7, Worker: w, Log: zap.NewNop()}

	r.HandleUpdate(command(8, "/start"))
	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}, Text: "hi"}})
	assert.Equal(t, worker.Idle, w.ctl.State())
	assert.Empty(t, bot.sent)
}

func TestRouterStatusAndResults(t *testing.T) {
	yes, no := true, false
	bot := &fakeBot{}
	w := &fakeWorker{ctl: worker.NewControl(), results: []worker.Result{
		{Question: "1+1", Type: answerer.Single, Finish: &yes},
		{Question: "2+2", Type: answerer.Single, Finish: &no, Err: errors.New("no answer")},
	}}
	r := &Router{Bot: bot, Worker: w}

	r.HandleUpdate(command(1, "/status"))
	assert.Contains(t, bot.last(), "Отвечено: 1 из 2")

	r.HandleUpdate(command(1, "/results"))
	assert.Contains(t, bot.last(), "✅ 1. 1+1")
	assert.Contains(t, bot.last(), "❌ 2. 2+2 (no answer)")

	r.HandleUpdate(command(1, "/what"))
	assert.Contains(t, bot.last(), "Неизвестная команда")
}

func TestNotifier(t *testing.T) {
	bot := &fakeBot{}
	n := &Notifier{Bot: bot, ChatID: 5}
	n.Upload(upload.Decision{Rate: 0.5, Action: upload.ActionSave}, 1, 2)
	assert.Equal(t, "📝 Отвечено 1 из 2 (50%), действие: save", bot.last())

	n.State(worker.Paused)
	assert.Equal(t, "Состояние: paused", bot.last())

	silent := &Notifier{Bot: bot}
	silent.Error(errors.New("x"))
	assert.Len(t, bot.sent, 2)

	var nilNotifier *Notifier
	nilNotifier.Error(errors.New("x"))
}

func TestRetryDelayFromError(t *testing.T) {
	tests := []struct {
		err  error
		want time.Duration
	}{
		{nil, 0},
		{errors.New("Too Many Requests: retry after 7"), 7 * time.Second},
		{errors.New("too many requests"), 3 * time.Second},
		{timeoutErr{}, 2 * time.Second},
		{errors.New("bad gateway"), time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryDelayFromError(tt.err))
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type scriptedUpdater struct {
	mu      sync.Mutex
	calls   int
	offsets []int
	cancel  context.CancelFunc
}

func (s *scriptedUpdater) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.offsets = append(s.offsets, cfg.Offset)
	switch s.calls {
	case 1:
		return []tgbotapi.Update{{UpdateID: 10}, {UpdateID: 11}}, nil
	case 2:
		return nil, errors.New("boom")
	default:
		s.cancel()
		return nil, nil
	}
}

func TestPollerRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	up := &scriptedUpdater{cancel: cancel}
	p := NewPoller(up, zap.NewNop())
	p.baseDelay, p.maxDelay, p.idle = time.Millisecond, time.Millisecond, time.Millisecond

	var got []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx, func(u tgbotapi.Update) { got = append(got, u.UpdateID) })
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
	require.Equal(t, []int{10, 11}, got)
	assert.Equal(t, []int{0, 12, 12}, up.offsets)
}
