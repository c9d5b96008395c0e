package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	overviewPage = "definition/pages/a1b2/page.json"
	detailPage   = "definition/pages/c3d4/page.json"
	tableVisual  = "definition/pages/a1b2/visuals/v1/visual.json"
	pieVisual    = "definition/pages/a1b2/visuals/v2/visual.json"
	columnVisual = "definition/pages/c3d4/visuals/v3/visual.json"
	textVisual   = "definition/pages/c3d4/visuals/v4/visual.json"
)

func inlinePart(path, doc string) DefinitionPart {
	return DefinitionPart{Path: path, Payload: base64.StdEncoding.EncodeToString([]byte(doc)), PayloadType: PayloadTypeInlineBase64}
}

func reportDefinition() *ItemDefinition {
	return &ItemDefinition{Parts: []DefinitionPart{
		inlinePart("definition.pbir", `{"version":"4.0"}`),
		inlinePart(overviewPage, `{"name":"a1b2","displayName":"Overview","width":1280,"height":720}`),
		inlinePart(detailPage, `{"name":"c3d4","displayName":"Detail","width":1600,"height":900}`),
		inlinePart(tableVisual, `{"visual":{"visualType":"tableEx","query":{"queryState":{"Values":{"projections":[
			{"field":{"Column":{"Property":"Region"}}},
			{"field":{"Measure":{"Property":"Revenue"}}}
		]}}}}}`),
		inlinePart(pieVisual, `{"visual":{"visualType":"pieChart","query":{"queryState":{"Values":{"projections":[{"field":{"Column":{"Property":"Region"}}}]}}}},
			"filterConfig":{"filters":[{"name":"f1","isHiddenInViewMode":true},{"name":"f2"}]}}`),
		inlinePart(columnVisual, `{"visual":{"visualType":"clusteredColumnChart","objects":{"labels":[{"properties":{"show":{"expr":{"Literal":{"Value":"true"}}}}}]}}}`),
		inlinePart(textVisual, `{"visual":{"visualType":"textbox"}}`),
	}}
}

func partJSON(t *testing.T, def *ItemDefinition, path string) string {
	t.Helper()
	part, ok := def.Part(path)
	require.True(t, ok, path)
	data, err := part.Decode()
	require.NoError(t, err)
	return string(data)
}

func TestPageSizeFixer(t *testing.T) {
	def := reportDefinition()
	report, err := PageSizeFixer().Apply(def, FixOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.NeedsFix)
	assert.Equal(t, 1, report.Fixed)
	overview := partJSON(t, def, overviewPage)
	assert.Equal(t, int64(1920), gjson.Get(overview, "width").Int())
	assert.Equal(t, int64(1080), gjson.Get(overview, "height").Int())
	assert.Equal(t, "Overview", gjson.Get(overview, "displayName").String())
	assert.Equal(t, int64(1600), gjson.Get(partJSON(t, def, detailPage), "width").Int())
}

func TestPageSizeFixer_ScanOnlyLeavesDefinition(t *testing.T) {
	def := reportDefinition()
	before := def.Parts[1].Payload

	report, err := PageSizeFixer().Apply(def, FixOptions{ScanOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.NeedsFix)
	assert.Zero(t, report.Fixed)
	assert.Equal(t, before, def.Parts[1].Payload)
	require.Len(t, report.Findings, 2)
	assert.False(t, report.Findings[0].Fixed)
	assert.Contains(t, report.Findings[1].Detail, "custom size 1600x900")
}

func TestHideVisualFiltersFixer(t *testing.T) {
	def := reportDefinition()
	report, err := HideVisualFiltersFixer().Apply(def, FixOptions{})
	require.NoError(t, err)

	// The textbox and column chart have no query and are skipped.
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 2, report.Fixed)

	table := gjson.Parse(partJSON(t, def, tableVisual))
	filters := table.Get("filterConfig.filters").Array()
	require.Len(t, filters, 2)
	assert.Equal(t, "Categorical", filters[0].Get("type").String())
	assert.Equal(t, "Region", filters[0].Get("field.Column.Property").String())
	assert.Equal(t, "Advanced", filters[1].Get("type").String())
	assert.True(t, filters[1].Get("isHiddenInViewMode").Bool())

	pie := gjson.Parse(partJSON(t, def, pieVisual))
	for _, f := range pie.Get("filterConfig.filters").Array() {
		assert.True(t, f.Get("isHiddenInViewMode").Bool(), f.Raw)
	}
	assert.Equal(t, "f2", pie.Get("filterConfig.filters.1.name").String())
}

func TestHideVisualFiltersFixer_AlreadyHidden(t *testing.T) {
	def := &ItemDefinition{Parts: []DefinitionPart{
		inlinePart(tableVisual, `{"visual":{"query":{"queryState":{"Values":{"projections":[]}}}},"filterConfig":{"filters":[{"isHiddenInViewMode":true}]}}`),
	}}
	report, err := HideVisualFiltersFixer().Apply(def, FixOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Zero(t, report.NeedsFix)
	assert.Equal(t, "all filters already hidden", report.Findings[0].Detail)
}

func TestPieChartFixer(t *testing.T) {
	def := reportDefinition()
	report, err := PieChartFixer("").Apply(def, FixOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fixed)
	assert.Equal(t, DefaultPieChartReplacement, gjson.Get(partJSON(t, def, pieVisual), "visual.visualType").String())

	def = reportDefinition()
	_, err = PieChartFixer("columnChart").Apply(def, FixOptions{})
	require.NoError(t, err)
	assert.Equal(t, "columnChart", gjson.Get(partJSON(t, def, pieVisual), "visual.visualType").String())
}

func TestColumnChartFixer(t *testing.T) {
	def := reportDefinition()
	report, err := ColumnChartFixer().Apply(def, FixOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Fixed)
	assert.NotContains(t, report.Findings[0].Detail, "Data labels")
	assert.Contains(t, report.Findings[0].Detail, "X axis title")

	doc := []byte(partJSON(t, def, columnVisual))
	for _, rule := range columnChartRules {
		assert.Equal(t, rule.value, literalProperty(doc, rule.object, rule.property), rule.label)
	}

	again, err := ColumnChartFixer().Apply(def, FixOptions{ScanOnly: true})
	require.NoError(t, err)
	assert.Zero(t, again.NeedsFix)
}

func TestFixerPageScope(t *testing.T) {
	def := reportDefinition()
	report, err := HideVisualFiltersFixer().Apply(def, FixOptions{Page: "detail"})
	require.NoError(t, err)
	assert.Zero(t, report.Checked)

	report, err = PageSizeFixer().Apply(def, FixOptions{Page: "a1b2", ScanOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)

	_, err = PageSizeFixer().Apply(def, FixOptions{Page: "Appendix"})
	var se *StructuredError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrNotFound, se.Code)
}

func TestReportsFix(t *testing.T) {
	var updated ItemDefinition
	updates := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+wsRoute+"/items/"+testItemID+"/getDefinition", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"definition": reportDefinition()})
	})
	mux.HandleFunc("POST "+wsRoute+"/items/"+testItemID+"/updateDefinition", func(w http.ResponseWriter, r *http.Request) {
		updates++
		var req struct {
			Definition ItemDefinition `json:"definition"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &req)
		updated = req.Definition
		w.WriteHeader(http.StatusOK)
	})
	n, _, _ := newTestNormalizer(t, mux)
	ctx := context.Background()

	scan, err := n.Reports().Fix(ctx, testWorkspaceID, testItemID, PageSizeFixer(), FixOptions{ScanOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, scan.NeedsFix)
	assert.Zero(t, updates)

	report, err := n.Reports().Fix(ctx, testWorkspaceID, testItemID, PageSizeFixer(), FixOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusCode(http.StatusOK), report.StatusCode)
	assert.Equal(t, 1, updates)
	require.Len(t, updated.Parts, len(reportDefinition().Parts))
	assert.Equal(t, int64(1080), gjson.Get(partJSON(t, &updated, overviewPage), "height").Int())
}

func TestReportsFix_NothingToChange(t *testing.T) {
	updates := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+wsRoute+"/items/"+testItemID+"/getDefinition", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"definition": map[string]any{"parts": []any{
			inlinePart(detailPage, `{"displayName":"Detail","width":1920,"height":1080}`),
		}}})
	})
	mux.HandleFunc("POST "+wsRoute+"/items/"+testItemID+"/updateDefinition", func(w http.ResponseWriter, r *http.Request) {
		updates++
		w.WriteHeader(http.StatusOK)
	})
	n, _, _ := newTestNormalizer(t, mux)

	report, err := n.Reports().Fix(context.Background(), testWorkspaceID, testItemID, PageSizeFixer(), FixOptions{})
	require.NoError(t, err)
	assert.Zero(t, report.Fixed)
	assert.Zero(t, report.StatusCode)
	assert.Zero(t, updates)
}
