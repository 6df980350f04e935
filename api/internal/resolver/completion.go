package resolver

import (
	"strings"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/match"
)

// completion: options — поля ввода, по порядку.
func (s *session) completion(results []answerer.Result) error {
	for _, res := range results {
		answers := nonBlank(res.Answers())
		if len(answers) == 1 {
			answers = match.SplitAnswer(answers[0], s.r.separators)
		}
		if len(answers) == 0 {
			continue
		}
		switch {
		case len(answers) == len(s.options):
			for i, a := range answers {
				if err := s.choose(i, a); err != nil {
					return err
				}
			}
			return nil
		case len(s.options) == 1:
			return s.choose(0, strings.Join(answers, " "))
		}
		// число ответов не сходится с числом полей: следующий источник
	}
	s.diagnose("fields", len(s.options), "answers", answerer.SplitAll(results, s.r.separators))
	return nil
}

func nonBlank(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
