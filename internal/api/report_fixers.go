package api

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	pageFile   = "page.json"
	visualFile = "visual.json"

	defaultPageWidth  = 1280
	defaultPageHeight = 720
	fullHDPageWidth   = 1920
	fullHDPageHeight  = 1080

	// DefaultPieChartReplacement is the visual type pie charts become.
	DefaultPieChartReplacement = "clusteredBarChart"
)

// FixFinding describes one page or visual a fixer looked at.
type FixFinding struct {
	Path   string `json:"path"`
	Detail string `json:"detail"`
	Fixed  bool   `json:"fixed"`
}

// FixReport summarizes a fixer run over a report definition. Checked counts
// the candidate parts, NeedsFix those that were not compliant.
type FixReport struct {
	Fixer      string       `json:"fixer"`
	ScanOnly   bool         `json:"scan_only"`
	Checked    int          `json:"checked"`
	NeedsFix   int          `json:"needs_fix"`
	Fixed      int          `json:"fixed"`
	Findings   []FixFinding `json:"findings"`
	StatusCode StatusCode   `json:"status_code,omitempty"`
}

// FixOptions scope a fixer run. Page limits the run to one page, matched by
// display name or page ID.
type FixOptions struct {
	Page     string
	ScanOnly bool
}

// partCheck is a fixer's verdict on one part. Candidate is false for parts
// the fixer does not apply to; Updated is nil when nothing needs changing.
type partCheck struct {
	Candidate bool
	Detail    string
	Updated   []byte
}

// ReportFixer inspects and rewrites one kind of PBIR part.
type ReportFixer struct {
	Name  string
	File  string
	check func(doc []byte) (partCheck, error)
}

// PageSizeFixer resizes pages still on the default 1280x720 canvas to
// 1920x1080. Pages with a custom size are left alone.
func PageSizeFixer() ReportFixer {
	return ReportFixer{Name: "page-size", File: pageFile, check: checkPageSize}
}

// HideVisualFiltersFixer hides every visual-level filter in view mode. A
// visual with query fields but no filterConfig gets one built from its
// projections.
func HideVisualFiltersFixer() ReportFixer {
	return ReportFixer{Name: "hide-visual-filters", File: visualFile, check: checkVisualFilters}
}

// PieChartFixer replaces pie charts with target, or
// DefaultPieChartReplacement when target is empty.
func PieChartFixer(target string) ReportFixer {
	target = strings.TrimSpace(target)
	if target == "" {
		target = DefaultPieChartReplacement
	}
	return ReportFixer{Name: "pie-chart", File: visualFile, check: func(doc []byte) (partCheck, error) {
		return checkPieChart(doc, target)
	}}
}

// ColumnChartFixer applies the column chart formatting rules: no axis
// titles, no value axis, data labels on and no vertical gridlines.
func ColumnChartFixer() ReportFixer {
	return ReportFixer{Name: "column-chart", File: visualFile, check: checkColumnChart}
}

// Fix runs fixer over the report definition. Unless opts.ScanOnly is set,
// changed parts are written back with a single definition update.
func (s ReportsService) Fix(ctx context.Context, workspaceID, reportID string, fixer ReportFixer, opts FixOptions) (*FixReport, error) {
	defs := s.Definitions()
	def, err := defs.Get(ctx, workspaceID, reportID, "")
	if err != nil {
		return nil, err
	}
	report, err := fixer.Apply(def, opts)
	if err != nil {
		return nil, err
	}
	if opts.ScanOnly || report.Fixed == 0 {
		return report, nil
	}
	status, err := defs.Update(ctx, workspaceID, reportID, *def, false)
	if err != nil {
		return nil, err
	}
	report.StatusCode = status
	return report, nil
}

// Apply runs the fixer against def in place.
func (f ReportFixer) Apply(def *ItemDefinition, opts FixOptions) (*FixReport, error) {
	report := &FixReport{Fixer: f.Name, ScanOnly: opts.ScanOnly, Findings: []FixFinding{}}

	var folder string
	if opts.Page != "" {
		var err error
		if folder, err = pageFolder(def, opts.Page); err != nil {
			return nil, err
		}
	}

	for i := range def.Parts {
		part := &def.Parts[i]
		if path.Base(part.Path) != f.File {
			continue
		}
		if folder != "" && !strings.Contains(part.Path, "/"+folder+"/") {
			continue
		}
		data, err := part.Decode()
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("part %s is not valid JSON", part.Path)
		}
		res, err := f.check(data)
		if err != nil {
			return nil, fmt.Errorf("part %s: %w", part.Path, err)
		}
		if !res.Candidate {
			continue
		}
		report.Checked++
		finding := FixFinding{Path: part.Path, Detail: res.Detail}
		if res.Updated != nil {
			report.NeedsFix++
			if !opts.ScanOnly {
				part.SetPayload(res.Updated)
				finding.Fixed = true
				report.Fixed++
			}
		}
		report.Findings = append(report.Findings, finding)
	}
	return report, nil
}

// pageFolder returns the folder name of the page matching page by display
// name or page ID.
func pageFolder(def *ItemDefinition, page string) (string, error) {
	page = strings.TrimSpace(page)
	for _, part := range def.Parts {
		if path.Base(part.Path) != pageFile {
			continue
		}
		folder := path.Base(path.Dir(part.Path))
		if strings.EqualFold(folder, page) {
			return folder, nil
		}
		data, err := part.Decode()
		if err != nil {
			return "", err
		}
		if strings.EqualFold(gjson.GetBytes(data, "displayName").String(), page) ||
			strings.EqualFold(gjson.GetBytes(data, "name").String(), page) {
			return folder, nil
		}
	}
	return "", NewStructuredError(ErrNotFound, fmt.Sprintf("page %q not found in report", page))
}

func checkPageSize(doc []byte) (partCheck, error) {
	width := gjson.GetBytes(doc, "width")
	height := gjson.GetBytes(doc, "height")
	res := partCheck{Candidate: true}
	if width.Int() != defaultPageWidth || height.Int() != defaultPageHeight {
		res.Detail = fmt.Sprintf("custom size %sx%s", width.Raw, height.Raw)
		return res, nil
	}
	res.Detail = fmt.Sprintf("default size %dx%d, resized to %dx%d",
		defaultPageWidth, defaultPageHeight, fullHDPageWidth, fullHDPageHeight)
	updated, err := sjson.SetBytes(doc, "width", fullHDPageWidth)
	if err != nil {
		return res, err
	}
	if res.Updated, err = sjson.SetBytes(updated, "height", fullHDPageHeight); err != nil {
		return res, err
	}
	return res, nil
}

func checkVisualFilters(doc []byte) (partCheck, error) {
	queryState := gjson.GetBytes(doc, "visual.query.queryState")
	if !queryState.IsObject() || len(queryState.Map()) == 0 {
		return partCheck{}, nil
	}
	res := partCheck{Candidate: true}

	filters := gjson.GetBytes(doc, "filterConfig.filters").Array()
	if len(filters) > 0 {
		visible := 0
		for _, f := range filters {
			if !f.Get("isHiddenInViewMode").Bool() {
				visible++
			}
		}
		if visible == 0 {
			res.Detail = "all filters already hidden"
			return res, nil
		}
		res.Detail = fmt.Sprintf("%d of %d filter(s) visible", visible, len(filters))
		updated := doc
		for i := range filters {
			var err error
			updated, err = sjson.SetBytes(updated, fmt.Sprintf("filterConfig.filters.%d.isHiddenInViewMode", i), true)
			if err != nil {
				return res, err
			}
		}
		res.Updated = updated
		return res, nil
	}

	built := filtersFromQuery(queryState)
	if len(built) == 0 {
		res.Detail = "no query fields"
		return res, nil
	}
	raw, err := json.Marshal(map[string]any{"filters": built})
	if err != nil {
		return res, err
	}
	res.Detail = fmt.Sprintf("no filterConfig, %d field(s) added as hidden filters", len(built))
	res.Updated, err = sjson.SetRawBytes(doc, "filterConfig", raw)
	return res, err
}

// filtersFromQuery builds hidden filters for every projected field. Measures
// get Advanced filters; columns and everything else get Categorical ones.
func filtersFromQuery(queryState gjson.Result) []map[string]any {
	var out []map[string]any
	queryState.ForEach(func(_, role gjson.Result) bool {
		for _, proj := range role.Get("projections").Array() {
			field := proj.Get("field")
			if !field.Exists() || field.Type == gjson.Null {
				continue
			}
			filterType := "Categorical"
			if field.Get("Measure").Exists() {
				filterType = "Advanced"
			}
			out = append(out, map[string]any{
				"name":               "",
				"field":              json.RawMessage(field.Raw),
				"type":               filterType,
				"isHiddenInViewMode": true,
			})
		}
		return true
	})
	return out
}

func checkPieChart(doc []byte, target string) (partCheck, error) {
	if gjson.GetBytes(doc, "visual.visualType").String() != "pieChart" {
		return partCheck{}, nil
	}
	res := partCheck{Candidate: true, Detail: "pie chart replaced with " + target}
	var err error
	res.Updated, err = sjson.SetBytes(doc, "visual.visualType", target)
	return res, err
}

type visualProperty struct {
	object, property, value, label string
}

var columnChartRules = []visualProperty{
	{"categoryAxis", "showAxisTitle", "false", "X axis title"},
	{"valueAxis", "showAxisTitle", "false", "Y axis title"},
	{"valueAxis", "show", "false", "Y axis values"},
	{"labels", "show", "true", "Data labels"},
	{"categoryAxis", "gridlineShow", "false", "Vertical gridlines"},
}

func checkColumnChart(doc []byte) (partCheck, error) {
	switch gjson.GetBytes(doc, "visual.visualType").String() {
	case "columnChart", "clusteredColumnChart":
	default:
		return partCheck{}, nil
	}
	res := partCheck{Candidate: true}

	var issues []string
	for _, rule := range columnChartRules {
		if literalProperty(doc, rule.object, rule.property) != rule.value {
			issues = append(issues, rule.label)
		}
	}
	if len(issues) == 0 {
		res.Detail = "all settings correct"
		return res, nil
	}
	res.Detail = "fixed: " + strings.Join(issues, ", ")

	updated := doc
	for _, rule := range columnChartRules {
		var err error
		if updated, err = setLiteralProperty(updated, rule.object, rule.property, rule.value); err != nil {
			return res, err
		}
	}
	res.Updated = updated
	return res, nil
}

func literalProperty(doc []byte, object, property string) string {
	p := fmt.Sprintf("visual.objects.%s.0.properties.%s.expr.Literal.Value", object, property)
	return gjson.GetBytes(doc, p).String()
}

func setLiteralProperty(doc []byte, object, property, value string) ([]byte, error) {
	objPath := "visual.objects." + object
	if len(gjson.GetBytes(doc, objPath).Array()) == 0 {
		var err error
		if doc, err = sjson.SetRawBytes(doc, objPath, []byte(`[{"properties":{}}]`)); err != nil {
			return nil, err
		}
	}
	literal, err := json.Marshal(map[string]any{"expr": map[string]any{"Literal": map[string]any{"Value": value}}})
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(doc, fmt.Sprintf("%s.0.properties.%s", objPath, property), literal)
}
