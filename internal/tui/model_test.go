package tui

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-advisor-backend/internal/client"
	"stock-advisor-backend/internal/config"
	"stock-advisor-backend/internal/model"
)

type stubFetcher struct {
	calls atomic.Int32
	last  model.AdvisorRequest
	list  model.RecommendationList
	err   error
}

func (f *stubFetcher) Fetch(_ context.Context, req model.AdvisorRequest) (model.RecommendationList, error) {
	f.calls.Add(1)
	f.last = req
	return f.list, f.err
}

func newTestModel(f client.Fetcher) Model {
	cfg := config.DefaultWidgets()[0]
	return New(context.Background(), cfg, f, PlainStyles())
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

// findResult 执行命令并取出其中的 resultMsg
func findResult(t *testing.T, cmd tea.Cmd) (resultMsg, bool) {
	t.Helper()
	if cmd == nil {
		return resultMsg{}, false
	}
	switch msg := cmd().(type) {
	case resultMsg:
		return msg, true
	case tea.BatchMsg:
		for _, c := range msg {
			if r, ok := findResult(t, c); ok {
				return r, true
			}
		}
	}
	return resultMsg{}, false
}

func TestSubmitRendersResults(t *testing.T) {
	f := &stubFetcher{list: model.RecommendationList{{Name: "AAPL", Sector: "Tech", Quantity: 10}}}
	m := typeText(t, newTestModel(f), "1500")

	m, cmd := update(t, m, key(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.True(t, m.State().Loading())
	assert.Contains(t, m.View(), "Loading...")

	res, ok := findResult(t, cmd)
	require.True(t, ok)
	m, _ = update(t, m, res)

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, model.AdvisorRequest{Budget: 1500, Risk: 50}, f.last)
	assert.False(t, m.State().Loading())

	view := m.View()
	assert.Contains(t, view, "Recommended Stocks")
	assert.Contains(t, view, "AAPL")
	assert.Contains(t, view, "10 shares")
}

func TestEnterIgnoredWhileLoading(t *testing.T) {
	f := &stubFetcher{list: model.RecommendationList{}}
	m := typeText(t, newTestModel(f), "10")

	m, first := update(t, m, key(tea.KeyEnter))
	require.NotNil(t, first)

	for i := 0; i < 3; i++ {
		var cmd tea.Cmd
		m, cmd = update(t, m, key(tea.KeyEnter))
		assert.Nil(t, cmd)
	}

	res, ok := findResult(t, first)
	require.True(t, ok)
	m, _ = update(t, m, res)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.NotContains(t, m.View(), "Recommended Stocks", "empty list renders no panel")
}

func TestSubmitWithoutBudget(t *testing.T) {
	f := &stubFetcher{}
	m, cmd := update(t, newTestModel(f), key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Please enter your budget")
	assert.Zero(t, f.calls.Load())

	m = typeText(t, m, "abc")
	m, cmd = update(t, m, key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "non-negative")
}

func TestFailureKeepsResults(t *testing.T) {
	f := &stubFetcher{list: model.RecommendationList{{Name: "AAPL", Quantity: 10}}}
	m := typeText(t, newTestModel(f), "100")

	m, cmd := update(t, m, key(tea.KeyEnter))
	res, _ := findResult(t, cmd)
	m, _ = update(t, m, res)

	f.list, f.err = nil, &client.FetchError{Kind: client.KindNetwork, Err: errors.New("refused")}
	m, cmd = update(t, m, key(tea.KeyEnter))
	res, _ = findResult(t, cmd)
	m, _ = update(t, m, res)

	view := m.View()
	assert.Contains(t, view, "Request failed (network)")
	assert.Contains(t, view, "AAPL")
	assert.False(t, m.State().Loading())
}

func TestRiskSliderClamps(t *testing.T) {
	m := newTestModel(&stubFetcher{})
	m, _ = update(t, m, key(tea.KeyTab))

	m, _ = update(t, m, key(tea.KeyRight))
	assert.Equal(t, 51, m.State().Risk)

	for i := 0; i < 10; i++ {
		m, _ = update(t, m, key(tea.KeyPgUp))
	}
	assert.Equal(t, 100, m.State().Risk)

	m, _ = update(t, m, key(tea.KeyHome))
	m, _ = update(t, m, key(tea.KeyLeft))
	assert.Equal(t, 0, m.State().Risk)
	assert.Contains(t, m.View(), "Risk Factor: 0")

	// 焦点在滑块上时输入不进入预算框
	m = typeText(t, m, "9")
	m, _ = update(t, m, key(tea.KeyTab))
	m, cmd := update(t, m, key(tea.KeyEnter))
	assert.Nil(t, cmd)
}

func TestSlider(t *testing.T) {
	assert.Equal(t, "["+strings.Repeat("-", 10)+"]", Slider(0, 10))
	assert.Equal(t, "[=====-----]", Slider(50, 10))
	assert.Equal(t, "["+strings.Repeat("=", 10)+"]", Slider(250, 10))
}

func TestQuitKeys(t *testing.T) {
	m := newTestModel(&stubFetcher{})
	_, cmd := update(t, m, key(tea.KeyEsc))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
