package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/util"
)

// System — общая инструкция для LLM-источников.
const System = `You answer exam questions. Reply with STRICT JSON {"answer": "..."} and nothing else.
Never explain. If you are not sure, still give your best answer.`

// User собирает запрос под тип вопроса.
func User(q answerer.Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question type: %s\nQuestion: %s\n", q.Type, q.Title)
	if len(q.Options) > 0 {
		b.WriteString("Options:\n")
		for i, o := range q.Options {
			fmt.Fprintf(&b, "%c. %s\n", 'A'+i, o)
		}
	}
	switch q.Type {
	case answerer.Single:
		b.WriteString(`Put the full text of the one correct option into "answer".`)
	case answerer.Multiple:
		b.WriteString(`Put the full texts of all correct options into "answer", joined with "#".`)
	case answerer.Judgement:
		b.WriteString(`Put "对" if the statement is true or "错" if it is false into "answer".`)
	case answerer.Completion:
		b.WriteString(`Put the text for every blank into "answer", in order, joined with "#".`)
	}
	return b.String()
}

// Parse достаёт ответ из текста модели. Если JSON не разобрался, возвращается сам текст.
// Массив склеивается через "#".
func Parse(text string) (string, error) {
	text = util.StripCodeFences(text)
	if text == "" {
		return "", fmt.Errorf("empty response")
	}
	var out struct {
		Answer json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil || len(out.Answer) == 0 {
		return text, nil
	}
	var s string
	if err := json.Unmarshal(out.Answer, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var arr []any
	if err := json.Unmarshal(out.Answer, &arr); err == nil {
		parts := make([]string, 0, len(arr))
		for _, v := range arr {
			if p := strings.TrimSpace(fmt.Sprint(v)); p != "" {
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, "#"), nil
	}
	return strings.TrimSpace(string(out.Answer)), nil
}

// Pairs превращает ответ модели в результат источника.
func Pairs(q answerer.Query, text string) ([]answerer.Pair, error) {
	a, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if a == "" {
		return nil, fmt.Errorf("empty answer")
	}
	return []answerer.Pair{{Question: q.Title, Answer: a}}, nil
}
