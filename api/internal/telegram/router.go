package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"ocs-worker/api/internal/util"
	"ocs-worker/api/internal/worker"
)

const maxMessage = 3900

// Sender — отправка сообщений. *tgbotapi.BotAPI подходит.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Worker — то, чем бот управляет и что показывает.
type Worker interface {
	Control() *worker.Control
	Snapshot() []worker.Result
}

// Router разбирает команды оператора. Чужие чаты игнорируются, если ChatID задан.
type Router struct {
	Bot    Sender
	ChatID int64
	Worker Worker
	Log    *zap.Logger
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil || !upd.Message.IsCommand() {
		return
	}
	cid := upd.Message.Chat.ID
	if r.ChatID != 0 && cid != r.ChatID {
		r.logger().Warn("telegram: foreign chat", zap.Int64("chat_id", cid))
		return
	}
	r.HandleCommand(cid, upd.Message.Command())
}

func (r *Router) HandleCommand(cid int64, cmd string) {
	ctl := r.Worker.Control()
	switch cmd {
	case "start", "stop", "continue", "close":
		sig := worker.Signal(cmd)
		if cmd == "continue" {
			sig = worker.SignalContinuate
		}
		before := ctl.State()
		if !ctl.Send(sig) {
			r.send(cid, fmt.Sprintf("⚠️ /%s недоступна в состоянии %s", cmd, before))
			return
		}
		r.send(cid, fmt.Sprintf("✅ %s → %s", before, ctl.State()))
	case "status":
		r.send(cid, statusText(ctl.State(), r.Worker.Snapshot()))
	case "results":
		r.send(cid, resultsText(r.Worker.Snapshot()))
	case "help":
		r.send(cid, helpText)
	default:
		r.send(cid, "Неизвестная команда\n\n"+helpText)
	}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, util.Truncate(text, maxMessage))
	if _, err := r.Bot.Send(msg); err != nil {
		r.logger().Warn("telegram: send failed", zap.Error(err))
	}
}

func (r *Router) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

const helpText = `Команды:
/start — запустить
/stop — пауза
/continue — продолжить
/close — завершить
/status — состояние
/results — ответы`

func statusText(s worker.State, rs []worker.Result) string {
	finished, total := worker.Count(rs)
	return fmt.Sprintf("Состояние: %s\nОтвечено: %d из %d", s, finished, total)
}

func resultsText(rs []worker.Result) string {
	if len(rs) == 0 {
		return "Результатов пока нет"
	}
	var b strings.Builder
	for i, res := range rs {
		b.WriteString(ItemText(i, res))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// ItemText — одна строка отчёта по вопросу.
func ItemText(i int, res worker.Result) string {
	mark := "❌"
	if res.Finished() {
		mark = "✅"
	}
	line := fmt.Sprintf("%s %d. %s", mark, i+1, util.Truncate(res.Question, 80))
	var picked []string
	for _, sel := range res.Summary().Selections {
		picked = append(picked, sel.Option)
	}
	if len(picked) > 0 {
		line += " → " + strings.Join(picked, " | ")
	}
	if res.Err != nil {
		line += " (" + res.Err.Error() + ")"
	}
	return line
}
