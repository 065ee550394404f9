package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-advisor-backend/internal/config"
	"stock-advisor-backend/internal/model"
)

func TestRowsSingleRecommendation(t *testing.T) {
	got := Rows(model.RecommendationList{{Name: "AAPL", Sector: "Tech", Quantity: 10}})
	want := []Row{{Name: "AAPL", Sector: "Tech", Quantity: "10 shares"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRowsPreserveOrderAndOptionalFields(t *testing.T) {
	got := Rows(model.RecommendationList{
		{Name: "XOM", Quantity: 1, Price: 110.5, Category: "S&P 500"},
		{Name: "AAPL", Sector: "Tech", Quantity: 0},
	})
	want := []Row{
		{Name: "XOM", Quantity: "1 shares", Price: "$110.50", Category: "S&P 500"},
		{Name: "AAPL", Sector: "Tech", Quantity: "0 shares"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyListRendersNothing(t *testing.T) {
	assert.Nil(t, Rows(nil))
	assert.Nil(t, Rows(model.RecommendationList{}))
	assert.Equal(t, "", Terminal(model.RecommendationList{}, PlainStyles()))
}

func TestTerminal(t *testing.T) {
	out := Terminal(model.RecommendationList{
		{Name: "AAPL", Sector: "Tech", Quantity: 10},
		{Name: "GOOGL", Quantity: 2},
	}, PlainStyles())

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Recommended Stocks", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "AAPL "))
	assert.Contains(t, lines[1], "Tech")
	assert.True(t, strings.HasSuffix(lines[1], "10 shares"))
	assert.True(t, strings.HasPrefix(lines[2], "GOOGL"))
	assert.True(t, strings.HasSuffix(lines[2], "2 shares"))
	assert.Less(t, strings.Index(out, "AAPL"), strings.Index(out, "GOOGL"))
}

func executePage(t *testing.T, name string, data any) string {
	t.Helper()
	tmpl, err := Templates()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&buf, name, data))
	return buf.String()
}

func TestWidgetTemplate(t *testing.T) {
	w := config.DefaultWidgets()[1]
	w.SubmitLabel = "Get Recommendations"

	st := model.NewWidgetState(w.Name)
	st.Budget, st.BudgetSet, st.Risk = 1500, true, 80
	st.Phase = model.PhaseResults
	st.Results = model.RecommendationList{{Name: "AAPL", Sector: "Tech", Quantity: 10}}

	html := executePage(t, "widget.tmpl", NewPage(w, st, ""))
	assert.Contains(t, html, `value="1500"`)
	assert.Contains(t, html, `value="80"`)
	assert.Contains(t, html, "Recommended Stocks")
	assert.Contains(t, html, `<span class="name">AAPL</span>`)
	assert.Contains(t, html, `<span class="sector">Tech</span>`)
	assert.Contains(t, html, `<span class="quantity">10 shares</span>`)
	assert.Equal(t, 1, strings.Count(html, "<li>"))
	assert.NotContains(t, html, "disabled>")
}

func TestWidgetTemplateEmptyAndLoading(t *testing.T) {
	w := config.DefaultWidgets()[0]
	st := model.NewWidgetState(w.Name)
	st.Phase = model.PhaseLoading

	page := NewPage(w, st, "Request failed")
	html := executePage(t, "widget.tmpl", page)
	assert.NotContains(t, html, "Recommended Stocks")
	assert.Contains(t, html, `value=""`)
	assert.Contains(t, html, " disabled>Loading...</button>")
	assert.Contains(t, html, "Request failed")
	assert.Equal(t, "", page.BudgetValue())
}

func TestTemplateEscapesServiceText(t *testing.T) {
	w := config.DefaultWidgets()[0]
	st := model.NewWidgetState(w.Name)
	st.Results = model.RecommendationList{{Name: "AT&T", Sector: `<img src=x>`, Quantity: 1}}

	html := executePage(t, "widget.tmpl", NewPage(w, st, ""))
	assert.Contains(t, html, "AT&amp;T")
	assert.NotContains(t, html, "<img")
}

func TestIndexAndStartTemplates(t *testing.T) {
	widgets := config.DefaultWidgets()
	html := executePage(t, "index.tmpl", widgets)
	assert.Contains(t, html, `href="/w/advisor"`)
	assert.Contains(t, html, `href="/w/optistock"`)

	html = executePage(t, "start.tmpl", NewPage(widgets[1], model.NewWidgetState("optistock"), ""))
	assert.Contains(t, html, "Get Started")
	assert.Contains(t, html, `/w/optistock?start=1`)
}
