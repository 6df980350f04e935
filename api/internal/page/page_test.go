package page

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/config"
	"ocs-worker/api/internal/resolver"
	"ocs-worker/api/internal/upload"
)

// fakeNode — узел с детьми по селектору.
type fakeNode struct {
	text     string
	attrs    map[string]string
	children map[string][]*fakeNode
	clicks   int
	input    string
	err      error
	ctx      context.Context
}

func (n *fakeNode) Text() (string, error) { return n.text, n.err }

func (n *fakeNode) Attribute(name string) (*string, error) {
	v, ok := n.attrs[name]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (n *fakeNode) Elements(selector string) ([]Node, error) {
	var out []Node
	for _, c := range n.children[selector] {
		out = append(out, c)
	}
	return out, nil
}

// ctxErr ведёт себя как rod: действие на узле с отменённым контекстом не выполняется.
func (n *fakeNode) ctxErr() error {
	if n.ctx == nil {
		return nil
	}
	return n.ctx.Err()
}

func (n *fakeNode) WithContext(ctx context.Context) Node {
	n.ctx = ctx
	return n
}

func (n *fakeNode) Click() error {
	if err := n.ctxErr(); err != nil {
		return err
	}
	n.clicks++
	return n.err
}

func (n *fakeNode) Input(text string) error {
	if err := n.ctxErr(); err != nil {
		return err
	}
	n.input = text
	return n.err
}

var sel = config.Selectors{
	Root:    ".q",
	Title:   ".title",
	Options: ".opt",
	Type:    ".type",
	TypeMap: map[string]string{"单选题": "single", "多选题": "multiple", "判断题": "judgement", "填空题": "completion"},
	Input:   "input[type=text]",
	Save:    ".save",
	Submit:  ".submit",
}

func choice(typ string, opts ...*fakeNode) *fakeNode {
	return &fakeNode{children: map[string][]*fakeNode{
		".title": {{text: "1. "}, {text: "中国的首都是"}},
		".type":  {{text: "【" + typ + "】"}},
		".opt":   opts,
	}}
}

func TestExtractChoice(t *testing.T) {
	checked := &fakeNode{text: "B. 上海", attrs: map[string]string{"class": "opt checked"}}
	root := choice("单选题", &fakeNode{text: " A. 北京 "}, checked)

	el, err := Extract(root, sel)
	require.NoError(t, err)
	assert.Equal(t, []string{"1. ", "中国的首都是"}, el.Title)
	assert.Equal(t, answerer.Single, el.Type)
	require.Len(t, el.Options, 2)
	assert.Equal(t, "A. 北京", el.Options[0].Text())
	assert.False(t, el.Options[0].Selected())
	assert.True(t, el.Options[1].Selected())
}

func TestQuestionType(t *testing.T) {
	tests := []struct {
		name string
		root *fakeNode
		want answerer.QuestionType
		err  bool
	}{
		{"type map", choice("多选题"), answerer.Multiple, false},
		{"data-type", &fakeNode{attrs: map[string]string{"data-type": "judgement"}}, answerer.Judgement, false},
		{"unknown", choice("论述题"), "", true},
		{"inputs", &fakeNode{children: map[string][]*fakeNode{"input[type=text]": {{}}}}, answerer.Completion, false},
		{"checkbox", &fakeNode{children: map[string][]*fakeNode{`input[type="checkbox"]`: {{}}}}, answerer.Multiple, false},
		{"default", &fakeNode{}, answerer.Single, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := questionType(tt.root, sel)
			if tt.err {
				assert.ErrorIs(t, err, resolver.ErrUnknownType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapType(t *testing.T) {
	m := map[string]string{"选": "single", "多选": "multiple"}
	assert.Equal(t, "multiple", mapType("多选题", m))
	assert.Equal(t, "single", mapType("选", m))
	assert.Equal(t, "raw", mapType("raw", m))
}

func TestExtractCompletion(t *testing.T) {
	root := &fakeNode{children: map[string][]*fakeNode{
		".title":           {{text: "___ is the capital"}},
		".type":            {{text: "填空题"}},
		"input[type=text]": {{}, {attrs: map[string]string{"value": "x"}}},
	}}
	el, err := Extract(root, sel)
	require.NoError(t, err)
	assert.Equal(t, answerer.Completion, el.Type)
	require.Len(t, el.Options, 2)
	assert.False(t, el.Options[0].Selected())
	assert.True(t, el.Options[1].Selected())
}

func TestExtractTextError(t *testing.T) {
	root := choice("单选题", &fakeNode{err: errors.New("detached")})
	_, err := Extract(root, sel)
	assert.ErrorContains(t, err, "detached")
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	a, b := &fakeNode{text: "A"}, &fakeNode{text: "B", attrs: map[string]string{"aria-checked": "true"}}
	el, err := Extract(choice("多选题", a, b), sel)
	require.NoError(t, err)

	require.NoError(t, Apply(ctx, answerer.Multiple, "A", el.Options[0]))
	require.NoError(t, Apply(ctx, answerer.Multiple, "A", el.Options[0]))
	require.NoError(t, Apply(ctx, answerer.Multiple, "B", el.Options[1]))
	assert.Equal(t, 1, a.clicks, "second apply is a no-op")
	assert.Equal(t, 0, b.clicks, "already checked")

	in := &fakeNode{}
	opt := &option{node: in}
	require.NoError(t, Apply(ctx, answerer.Completion, "北京", opt))
	assert.Equal(t, "北京", in.input)
	assert.Equal(t, "北京", opt.Text())

	assert.Error(t, Apply(ctx, answerer.Single, "x", foreignOption{}))
}

func TestApplyIgnoresExtractContext(t *testing.T) {
	runCtx, cancel := context.WithCancel(context.Background())
	a, b := &fakeNode{text: "A", ctx: runCtx}, &fakeNode{text: "B", ctx: runCtx}
	in := &fakeNode{ctx: runCtx}
	applyCtx := context.WithoutCancel(runCtx)
	cancel()

	require.NoError(t, Apply(applyCtx, answerer.Multiple, "A", &option{node: a}))
	require.NoError(t, Apply(applyCtx, answerer.Multiple, "B", &option{node: b}))
	require.NoError(t, Apply(applyCtx, answerer.Completion, "北京", &option{node: in}))
	assert.Equal(t, 1, a.clicks)
	assert.Equal(t, 1, b.clicks)
	assert.Equal(t, "北京", in.input)
	assert.Equal(t, applyCtx, a.ctx)

	c := &fakeNode{text: "C"}
	assert.ErrorIs(t, Apply(runCtx, answerer.Single, "C", &option{node: c}), context.Canceled)
	assert.Zero(t, c.clicks)
}

type foreignOption struct{}

func (foreignOption) Text() string   { return "" }
func (foreignOption) Selected() bool { return false }

func TestItemsReextract(t *testing.T) {
	roots := []*fakeNode{choice("单选题", &fakeNode{text: "A"}), choice("判断题", &fakeNode{text: "对"})}
	calls := 0
	items := Items(len(roots), func(_ context.Context, i int) Node {
		calls++
		return roots[i]
	}, sel)
	require.Len(t, items, 2)

	el, err := items[1].Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, answerer.Judgement, el.Type)
	_, err = items[1].Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSubmitter(t *testing.T) {
	save, submit := &fakeNode{}, &fakeNode{}
	buttons := map[string][]Node{".save": {save}, ".submit": {submit}}
	s := NewSubmitter(func(_ context.Context, selector string) ([]Node, error) {
		return buttons[selector], nil
	}, sel, nil)

	require.NoError(t, s.Callback(context.Background(), 0.5, false))
	require.NoError(t, s.Callback(context.Background(), 1, true))
	assert.Equal(t, 1, save.clicks)
	assert.Equal(t, 1, submit.clicks)

	delete(buttons, ".submit")
	assert.ErrorIs(t, s.Callback(context.Background(), 1, true), ErrNoButton)

	var cb upload.Callback = NewSubmitter(nil, config.Selectors{}, nil).Callback
	assert.NoError(t, cb(context.Background(), 1, true), "no selector, nothing to click")
}
