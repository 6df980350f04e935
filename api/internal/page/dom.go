package page

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Node — узел DOM, с которым работают извлечение и применение ответов.
type Node interface {
	Text() (string, error)
	Attribute(name string) (*string, error)
	Elements(selector string) ([]Node, error)
	Click() error
	Input(text string) error
	// WithContext перепривязывает узел к ctx для последующих действий.
	WithContext(ctx context.Context) Node
}

type rodNode struct {
	el *rod.Element
}

func wrap(ctx context.Context, els rod.Elements) []Node {
	out := make([]Node, 0, len(els))
	for _, el := range els {
		out = append(out, rodNode{el: el.Context(ctx)})
	}
	return out
}

func (n rodNode) Text() (string, error)                  { return n.el.Text() }
func (n rodNode) Attribute(name string) (*string, error) { return n.el.Attribute(name) }

func (n rodNode) WithContext(ctx context.Context) Node { return rodNode{el: n.el.Context(ctx)} }

func (n rodNode) Elements(selector string) ([]Node, error) {
	els, err := n.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrap(n.el.GetContext(), els), nil
}

func (n rodNode) Click() error {
	if err := n.el.ScrollIntoView(); err != nil {
		return err
	}
	return n.el.Click(proto.InputMouseButtonLeft, 1)
}

// Input заменяет значение поля.
func (n rodNode) Input(text string) error {
	if err := n.el.SelectAllText(); err != nil {
		return err
	}
	return n.el.Input(text)
}
