package answerer

import (
	"context"
	"fmt"

	"ocs-worker/api/internal/match"
)

// QuestionType — тип вопроса на странице.
type QuestionType string

const (
	Single     QuestionType = "single"
	Multiple   QuestionType = "multiple"
	Judgement  QuestionType = "judgement"
	Completion QuestionType = "completion"
)

// Valid сообщает, знаком ли тип резолверу.
func (t QuestionType) Valid() bool {
	switch t {
	case Single, Multiple, Judgement, Completion:
		return true
	}
	return false
}

// Pair — один найденный ответ: вопрос в формулировке источника и текст ответа.
type Pair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Query — то, что уходит каждому источнику.
type Query struct {
	Type    QuestionType `json:"type"`
	Title   string       `json:"title"`
	Options []string     `json:"options,omitempty"`
}

// Provider — источник ответов (HTTP API, LLM, кэш поверх них).
type Provider interface {
	Name() string
	Homepage() string
	Search(ctx context.Context, q Query) ([]Pair, error)
}

// ProviderError — сбой одного источника. Остальные источники он не затрагивает.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("answerer %s: %v", e.Provider, e.Err) }
func (e *ProviderError) Unwrap() error { return e.Err }

// Result — ответ одного источника на один запрос. После создания не меняется.
type Result struct {
	Name     string
	Homepage string
	Pairs    []Pair
	Err      error
}

// Answers возвращает тексты ответов в исходном порядке.
func (r Result) Answers() []string {
	out := make([]string, 0, len(r.Pairs))
	for _, p := range r.Pairs {
		out = append(out, p.Answer)
	}
	return out
}

// Split разбивает все ответы источника по разделителям.
func (r Result) Split(separators []string) []string {
	var out []string
	for _, a := range r.Answers() {
		out = append(out, match.SplitAnswer(a, separators)...)
	}
	return out
}

// SummaryResult — сериализуемая копия Result (ошибка сведена к строке).
type SummaryResult struct {
	Name     string      `json:"name"`
	Homepage string      `json:"homepage,omitempty"`
	Results  [][2]string `json:"results"`
	Error    string      `json:"error,omitempty"`
}

func (r Result) Summary() SummaryResult {
	s := SummaryResult{Name: r.Name, Homepage: r.Homepage, Results: make([][2]string, 0, len(r.Pairs))}
	for _, p := range r.Pairs {
		s.Results = append(s.Results, [2]string{p.Question, p.Answer})
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// Summaries — Summary для каждого результата, порядок сохраняется.
func Summaries(rs []Result) []SummaryResult {
	out := make([]SummaryResult, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Summary())
	}
	return out
}

// SplitAll — все ответы всех источников, разбитые по разделителям.
func SplitAll(rs []Result, separators []string) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.Split(separators)...)
	}
	return out
}
