package resolver

import (
	"context"
	"errors"
	"fmt"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/match"
)

// MatchMode — способ сравнения ответов с вариантами.
type MatchMode string

const (
	Similar MatchMode = "similar" // нечёткое сравнение по рейтингу похожести
	Exact   MatchMode = "exact"   // вхождение подстроки
)

// ParseMatchMode проверяет значение из конфига; пустая строка означает similar.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(s) {
	case "", Similar:
		return Similar, nil
	case Exact:
		return Exact, nil
	}
	return "", fmt.Errorf("unknown match mode %q", s)
}

// SimilarityThreshold — рейтинг должен быть строго больше порога.
const SimilarityThreshold = 0.6

// Option — вариант ответа или поле ввода на странице. Резолвер его только читает.
type Option interface {
	Text() string
	Selected() bool
}

// ApplyFunc отмечает вариант (или заполняет поле) на странице.
type ApplyFunc func(ctx context.Context, typ answerer.QuestionType, answer string, opt Option) error

// Selection — применённый вариант и ответ, по которому он выбран.
type Selection struct {
	Option Option
	Answer string
}

// Decision — итог разбора вопроса. Finish=true значит, что хотя бы один
// вариант уже применён.
type Decision struct {
	Finish      bool
	Selections  []Selection
	Diagnostics map[string]any
}

var ErrUnknownType = errors.New("unknown question type")

// ApplyError — сбой при применении ответа к странице.
type ApplyError struct {
	Option string
	Answer string
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %q to option %q: %v", e.Answer, e.Option, e.Err)
}
func (e *ApplyError) Unwrap() error { return e.Err }

type Resolver struct {
	mode       MatchMode
	separators []string
	apply      ApplyFunc
}

// New. Пустой mode трактуется как similar, nil separators — как match.DefaultSeparators.
func New(mode MatchMode, separators []string, apply ApplyFunc) *Resolver {
	if mode == "" {
		mode = Similar
	}
	if len(separators) == 0 {
		separators = match.DefaultSeparators
	}
	if apply == nil {
		apply = func(context.Context, answerer.QuestionType, string, Option) error { return nil }
	}
	return &Resolver{mode: mode, separators: separators, apply: apply}
}

func (r *Resolver) Mode() MatchMode { return r.mode }

// Resolve выбирает варианты по ответам источников и сразу применяет их.
// Ошибка применения прерывает разбор и возвращается как *ApplyError
// вместе с уже сделанными выборами.
func (r *Resolver) Resolve(ctx context.Context, typ answerer.QuestionType, results []answerer.Result, options []Option) (Decision, error) {
	s := &session{r: r, ctx: ctx, typ: typ, options: options}
	var err error
	switch typ {
	case answerer.Single:
		err = s.single(results)
	case answerer.Multiple:
		err = s.multiple(results)
	case answerer.Judgement:
		err = s.judgement(results)
	case answerer.Completion:
		err = s.completion(results)
	default:
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	s.dec.Finish = len(s.dec.Selections) > 0
	return s.dec, err
}

// session — состояние одного вызова Resolve.
type session struct {
	r       *Resolver
	ctx     context.Context
	typ     answerer.QuestionType
	options []Option
	dec     Decision
}

func (s *session) choose(i int, answer string) error {
	opt := s.options[i]
	if err := s.r.apply(s.ctx, s.typ, answer, opt); err != nil {
		return &ApplyError{Option: opt.Text(), Answer: answer, Err: err}
	}
	s.dec.Selections = append(s.dec.Selections, Selection{Option: opt, Answer: answer})
	return nil
}

func (s *session) diagnose(kv ...any) {
	if s.dec.Diagnostics == nil {
		s.dec.Diagnostics = map[string]any{}
	}
	for i := 0; i+1 < len(kv); i += 2 {
		s.dec.Diagnostics[fmt.Sprint(kv[i])] = kv[i+1]
	}
}

func (s *session) rawTexts() []string {
	out := make([]string, len(s.options))
	for i, o := range s.options {
		out[i] = o.Text()
	}
	return out
}

func (s *session) strippedTexts() []string {
	out := make([]string, len(s.options))
	for i, o := range s.options {
		out[i] = match.StripRedundant(o.Text())
	}
	return out
}
