package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recommendable/core"
)

type appendNode struct {
	id  string
	err error
}

func (n *appendNode) Name() string { return "test.append" }
func (n *appendNode) Kind() Kind   { return KindRecall }
func (n *appendNode) Process(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	if n.err != nil {
		return nil, n.err
	}
	return append(items, core.NewItem("movies", n.id)), nil
}

func TestPipeline_Run(t *testing.T) {
	p := &Pipeline{Name: "test", Nodes: []Node{&appendNode{id: "a"}, &appendNode{id: "b"}}}
	out, err := p.Run(context.Background(), &core.RecommendContext{UserID: "u"}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[1].ID)

	boom := errors.New("boom")
	p.Nodes = append(p.Nodes, &appendNode{err: boom})
	_, err = p.Run(context.Background(), &core.RecommendContext{UserID: "u"}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "test.append")

	_, err = p.Run(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestConfig_Build(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: home
nodes:
  - type: test.append
    config:
      id: x
  - type: test.append
    config:
      id: y
`), 0o600))

	cfg, err := LoadFromYAML(path)
	require.NoError(t, err)
	assert.Equal(t, "home", cfg.Name)
	require.Len(t, cfg.Nodes, 2)

	factory := NewNodeFactory()
	factory.Register("test.append", func(c map[string]any) (Node, error) {
		id, _ := c["id"].(string)
		return &appendNode{id: id}, nil
	})
	assert.Equal(t, []string{"test.append"}, factory.Types())

	p, err := cfg.Build(factory)
	require.NoError(t, err)
	out, err := p.Run(context.Background(), &core.RecommendContext{}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "x", out[0].ID)

	cfg.Nodes = append(cfg.Nodes, NodeConfig{Type: "unknown"})
	_, err = cfg.Build(factory)
	assert.ErrorContains(t, err, "unknown node type")
}
