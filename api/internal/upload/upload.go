package upload

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Policy — правило сдачи: save, nomove, force или порог в процентах "0".."100".
type Policy string

const (
	Save   Policy = "save"
	NoMove Policy = "nomove"
	Force  Policy = "force"
)

// ParsePolicy проверяет значение из конфига.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case Save, NoMove, Force:
		return p, nil
	}
	if _, err := p.threshold(); err != nil {
		return "", err
	}
	return p, nil
}

func (p Policy) threshold() (float64, error) {
	n, err := strconv.ParseFloat(string(p), 64)
	if err != nil {
		return 0, fmt.Errorf("unknown upload policy %q", string(p))
	}
	if math.IsNaN(n) || n < 0 || n > 100 {
		return 0, fmt.Errorf("upload threshold %v out of range 0..100", n)
	}
	return n, nil
}

// Action — что странице сделать с ответами.
type Action int

const (
	ActionNone Action = iota
	ActionSave
	ActionSubmit
)

func (a Action) String() string {
	switch a {
	case ActionSave:
		return "save"
	case ActionSubmit:
		return "submit"
	}
	return "none"
}

type Decision struct {
	Rate       float64 // доля отвеченных, 0..1
	Uploadable bool
	Action     Action
}

// Rate — finished/total; при total=0 ноль.
func Rate(finished, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(finished) / float64(total)
}

const eps = 1e-9

// Decide применяет политику к доле отвеченных вопросов.
func Decide(p Policy, rate float64) (Decision, error) {
	d := Decision{Rate: rate}
	switch p {
	case NoMove:
		return d, nil
	case Save:
		d.Action = ActionSave
		return d, nil
	case Force:
		d.Uploadable, d.Action = true, ActionSubmit
		return d, nil
	}
	n, err := p.threshold()
	if err != nil {
		return d, err
	}
	if rate*100+eps >= n {
		d.Uploadable, d.Action = true, ActionSubmit
	} else {
		d.Action = ActionSave
	}
	return d, nil
}

// Callback получает итог. Выполнение save/submit — забота вызывающего.
type Callback func(ctx context.Context, rate float64, uploadable bool) error

// Handle считает решение и вызывает cb. При nomove cb не вызывается.
func Handle(ctx context.Context, p Policy, finished, total int, cb Callback) (Decision, error) {
	d, err := Decide(p, Rate(finished, total))
	if err != nil {
		return d, err
	}
	if p == NoMove || cb == nil {
		return d, nil
	}
	if err := cb(ctx, d.Rate, d.Uploadable); err != nil {
		return d, fmt.Errorf("upload callback: %w", err)
	}
	return d, nil
}
