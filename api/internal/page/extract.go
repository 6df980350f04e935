package page

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/config"
	"ocs-worker/api/internal/resolver"
	"ocs-worker/api/internal/worker"
)

// option — вариант или поле ввода. Текст и отметка сняты в момент извлечения.
type option struct {
	node     Node
	text     string
	selected bool
}

func (o *option) Text() string   { return o.text }
func (o *option) Selected() bool { return o.selected }

// Extract снимает заголовок, тип и варианты вопроса с корневого узла.
func Extract(root Node, sel config.Selectors) (worker.Elements, error) {
	var el worker.Elements

	titles, err := root.Elements(sel.Title)
	if err != nil {
		return el, fmt.Errorf("title: %w", err)
	}
	for _, t := range titles {
		s, err := t.Text()
		if err != nil {
			return el, fmt.Errorf("title text: %w", err)
		}
		el.Title = append(el.Title, s)
	}

	typ, err := questionType(root, sel)
	if err != nil {
		return el, err
	}
	el.Type = typ

	if typ == answerer.Completion {
		inputs, err := root.Elements(sel.Input)
		if err != nil {
			return el, fmt.Errorf("inputs: %w", err)
		}
		for _, in := range inputs {
			v, _ := in.Attribute("value")
			el.Options = append(el.Options, &option{node: in, text: deref(v), selected: deref(v) != ""})
		}
		return el, nil
	}

	opts, err := root.Elements(sel.Options)
	if err != nil {
		return el, fmt.Errorf("options: %w", err)
	}
	for _, o := range opts {
		s, err := o.Text()
		if err != nil {
			return el, fmt.Errorf("option text: %w", err)
		}
		el.Options = append(el.Options, &option{node: o, text: strings.TrimSpace(s), selected: isSelected(o)})
	}
	return el, nil
}

// questionType: текст узла sel.Type (или атрибут data-type корня) через TypeMap,
// иначе по разметке: поля ввода → completion, checkbox → multiple, остальное → single.
func questionType(root Node, sel config.Selectors) (answerer.QuestionType, error) {
	var raw string
	if sel.Type != "" {
		nodes, err := root.Elements(sel.Type)
		if err != nil {
			return "", fmt.Errorf("type: %w", err)
		}
		if len(nodes) > 0 {
			raw, _ = nodes[0].Text()
		}
	}
	if raw == "" {
		v, _ := root.Attribute("data-type")
		raw = deref(v)
	}
	raw = strings.TrimSpace(raw)
	if raw != "" {
		raw = mapType(raw, sel.TypeMap)
		if t := answerer.QuestionType(strings.ToLower(raw)); t.Valid() {
			return t, nil
		}
		return "", fmt.Errorf("%w: %q", resolver.ErrUnknownType, raw)
	}

	if sel.Input != "" {
		if inputs, _ := root.Elements(sel.Input); len(inputs) > 0 {
			return answerer.Completion, nil
		}
	}
	if boxes, _ := root.Elements(`input[type="checkbox"]`); len(boxes) > 0 {
		return answerer.Multiple, nil
	}
	return answerer.Single, nil
}

// mapType: точное совпадение, иначе самый длинный ключ, входящий в raw.
func mapType(raw string, m map[string]string) string {
	if t, ok := m[raw]; ok {
		return t
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" && strings.Contains(raw, k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return raw
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return m[keys[0]]
}

func isSelected(n Node) bool {
	if v, _ := n.Attribute("aria-checked"); deref(v) == "true" {
		return true
	}
	if v, _ := n.Attribute("class"); v != nil {
		for _, c := range strings.Fields(*v) {
			switch c {
			case "checked", "selected", "active":
				return true
			}
		}
	}
	if checked, _ := n.Elements("input:checked"); len(checked) > 0 {
		return true
	}
	return false
}

// Apply отмечает вариант (не трогая уже отмеченный) или заполняет поле.
// Действия идут в контексте вызова, а не в контексте извлечения.
func Apply(ctx context.Context, typ answerer.QuestionType, answer string, opt resolver.Option) error {
	o, ok := opt.(*option)
	if !ok {
		return fmt.Errorf("page: foreign option %T", opt)
	}
	node := o.node.WithContext(ctx)
	if typ == answerer.Completion {
		if err := node.Input(answer); err != nil {
			return err
		}
		o.text, o.selected = answer, true
		return nil
	}
	if o.selected {
		return nil
	}
	if err := node.Click(); err != nil {
		return err
	}
	o.selected = true
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
