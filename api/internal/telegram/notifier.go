package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"ocs-worker/api/internal/upload"
	"ocs-worker/api/internal/util"
	"ocs-worker/api/internal/worker"
)

// Notifier шлёт события работы в чат оператора. Нулевой ChatID — молчит.
type Notifier struct {
	Bot    Sender
	ChatID int64
	Log    *zap.Logger
}

func (n *Notifier) Result(i int, res worker.Result) {
	n.send(ItemText(i, res))
}

func (n *Notifier) State(s worker.State) {
	n.send("Состояние: " + s.String())
}

func (n *Notifier) Upload(d upload.Decision, finished, total int) {
	n.send(fmt.Sprintf("📝 Отвечено %d из %d (%.0f%%), действие: %s", finished, total, d.Rate*100, d.Action))
}

func (n *Notifier) Error(err error) {
	n.send(fmt.Sprintf("Ошибка: %v", err))
}

func (n *Notifier) send(text string) {
	if n == nil || n.Bot == nil || n.ChatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(n.ChatID, util.Truncate(text, maxMessage))
	if _, err := n.Bot.Send(msg); err != nil && n.Log != nil {
		n.Log.Warn("telegram: notify failed", zap.Error(err))
	}
}
