package worker

import (
	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/resolver"
)

// Result — итог одного вопроса. Requesting/Resolving показывают,
// на каком этапе остановилась последняя попытка.
type Result struct {
	Requesting  bool
	Resolving   bool
	Err         error
	Question    string
	Type        answerer.QuestionType
	Finish      *bool // nil, если до разбора ответа дело не дошло
	SearchInfos []answerer.Result
	Decision    resolver.Decision
}

// Finished — вопрос отвечен (выбор уже применён к странице).
func (r Result) Finished() bool { return r.Finish != nil && *r.Finish }

func (r Result) clone() Result {
	r.SearchInfos = append([]answerer.Result(nil), r.SearchInfos...)
	r.Decision.Selections = append([]resolver.Selection(nil), r.Decision.Selections...)
	if r.Finish != nil {
		f := *r.Finish
		r.Finish = &f
	}
	return r
}

// Selection — выбранный вариант в виде текста.
type Selection struct {
	Option string `json:"option"`
	Answer string `json:"answer"`
}

// Summary — Result без ссылок на элементы страницы; годится для хранения и передачи.
type Summary struct {
	Question    string                   `json:"question"`
	Type        string                   `json:"type,omitempty"`
	Finish      *bool                    `json:"finish,omitempty"`
	Requesting  bool                     `json:"requesting"`
	Resolving   bool                     `json:"resolving"`
	Error       string                   `json:"error,omitempty"`
	Selections  []Selection              `json:"selections,omitempty"`
	SearchInfos []answerer.SummaryResult `json:"search_infos"`
}

func (r Result) Summary() Summary {
	s := Summary{
		Question:    r.Question,
		Type:        string(r.Type),
		Requesting:  r.Requesting,
		Resolving:   r.Resolving,
		SearchInfos: answerer.Summaries(r.SearchInfos),
	}
	if r.Finish != nil {
		f := *r.Finish
		s.Finish = &f
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	for _, sel := range r.Decision.Selections {
		s.Selections = append(s.Selections, Selection{Option: sel.Option.Text(), Answer: sel.Answer})
	}
	return s
}

func Summarize(rs []Result) []Summary {
	out := make([]Summary, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Summary())
	}
	return out
}

// Count возвращает число отвеченных вопросов и общее число записанных.
func Count(rs []Result) (finished, total int) {
	for _, r := range rs {
		if r.Finished() {
			finished++
		}
	}
	return finished, len(rs)
}
