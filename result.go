package resflow

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var ErrUnsupportedData = errors.New("result type does not hold this kind of data")

type Result struct {
	ID          string             `json:"id"`
	WorkflowID  string             `json:"workflow_id"`
	StepID      string             `json:"step_id,omitempty"`
	Type        ResultType         `json:"type"`
	Name        string             `json:"name"`
	Codename    string             `json:"codename"`
	Description string             `json:"description,omitempty"`
	Order       int                `json:"order"`
	Data        map[string]any     `json:"data"`
	Options     Options            `json:"options"`
	Controller  ControllerMetadata `json:"controller"`
	CreatedAt   time.Time          `json:"created_at"`

	StatusLedger `json:"status"`
	Attributes   `json:"attributes"`
}

type ResultKind interface {
	Type() ResultType
	DefaultOptions() map[string]any
	Controller() ControllerMetadata
}

type resultKind struct {
	resultType ResultType
	options    func() map[string]any
	controller string
}

func (k resultKind) Type() ResultType               { return k.resultType }
func (k resultKind) DefaultOptions() map[string]any { return k.options() }
func (k resultKind) Controller() ControllerMetadata { return ControllerMetadata{Path: k.controller} }

func tableOptions() map[string]any {
	return map[string]any{
		"data_table_kwargs": map[string]any{
			"searching": false,
			"paging":    false,
			"info":      false,
		},
		"no_dataset_message": "No dataset found.",
	}
}

var resultKinds = map[ResultType]ResultKind{
	ResultTypeDataset: resultKind{
		resultType: ResultTypeDataset,
		options:    tableOptions,
		controller: "results_views.DatasetWorkflowResultView",
	},
	ResultTypePlot: resultKind{
		resultType: ResultTypePlot,
		options: func() map[string]any {
			return MergeOptions(tableOptions(), map[string]any{
				"renderer":    "plotly",
				"axes":        []any{},
				"plot_type":   "lines",
				"axis_labels": []any{"x", "y"},
			})
		},
		controller: "results_views.PlotWorkflowResultView",
	},
	ResultTypeSpatial: resultKind{
		resultType: ResultTypeSpatial,
		options: func() map[string]any {
			return map[string]any{
				"layer_group_title":   "Results",
				"layer_group_control": "checkbox",
			}
		},
		controller: "results_views.MapWorkflowResultView",
	},
	ResultTypeReport: resultKind{
		resultType: ResultTypeReport,
		options: func() map[string]any {
			return map[string]any{"include_tabular_data": true}
		},
		controller: "results_views.ReportWorkflowResultView",
	},
}

func LookupResultKind(resultType ResultType) (ResultKind, error) {
	kind, ok := resultKinds[resultType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResultType, resultType)
	}

	return kind, nil
}

func NewResult(resultType ResultType, name, codename string) (*Result, error) {
	kind, err := LookupResultKind(resultType)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ID:         uuid.NewString(),
		Type:       resultType,
		Name:       name,
		Codename:   codename,
		Data:       map[string]any{},
		Options:    MergeOptions(kind.DefaultOptions(), nil),
		Controller: kind.Controller(),
		CreatedAt:  time.Now(),
	}
	_ = result.SetRootStatus(StatusPending)

	return result, nil
}

func (r *Result) SetOptions(value any) error {
	override, err := toOptionsMap(value)
	if err != nil {
		return err
	}

	kind, err := LookupResultKind(r.Type)
	if err != nil {
		return err
	}
	r.Options = MergeOptions(kind.DefaultOptions(), override)

	return nil
}

// Reset clears produced data and keeps identity, order and options.
func (r *Result) Reset() {
	r.Data = map[string]any{}
}

func (r *Result) AddDataset(title string, columns []string, rows [][]any, showExport bool) error {
	if r.Type != ResultTypeDataset && r.Type != ResultTypePlot {
		return fmt.Errorf("%w: %s cannot hold datasets", ErrUnsupportedData, r.Type)
	}
	if title == "" {
		return fmt.Errorf("%w: dataset title is required", ErrValidation)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: dataset %q is empty", ErrValidation, title)
	}

	data := make([]any, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("%w: dataset %q row %d has %d values, want %d", ErrValidation, title, i, len(row), len(columns))
		}
		data[i] = append([]any(nil), row...)
	}

	cols := make([]any, len(columns))
	for i, c := range columns {
		cols[i] = c
	}

	r.appendData("datasets", map[string]any{
		"title":       title,
		"columns":     cols,
		"rows":        data,
		"show_export": showExport,
	})

	return nil
}

func (r *Result) Datasets() []map[string]any {
	return r.entries("datasets")
}

func (r *Result) AddSeries(title string, x, y []any) error {
	if r.Type != ResultTypePlot {
		return fmt.Errorf("%w: %s cannot hold series", ErrUnsupportedData, r.Type)
	}
	if title == "" {
		return fmt.Errorf("%w: series title is required", ErrValidation)
	}
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("%w: series %q must have equal, non-empty axes", ErrValidation, title)
	}

	r.appendData("series", map[string]any{
		"title": title,
		"x":     append([]any(nil), x...),
		"y":     append([]any(nil), y...),
	})

	return nil
}

func (r *Result) Series() []map[string]any {
	return r.entries("series")
}

func (r *Result) AddLayer(name string, geojson map[string]any, options map[string]any) error {
	if r.Type != ResultTypeSpatial {
		return fmt.Errorf("%w: %s cannot hold layers", ErrUnsupportedData, r.Type)
	}
	if name == "" {
		return fmt.Errorf("%w: layer name is required", ErrValidation)
	}
	if len(geojson) == 0 {
		return fmt.Errorf("%w: layer %q has no features", ErrValidation, name)
	}

	r.appendData("layers", map[string]any{
		"name":    name,
		"geojson": copyValue(geojson),
		"options": MergeOptions(nil, options),
	})

	return nil
}

func (r *Result) Layers() []map[string]any {
	return r.entries("layers")
}

func (r *Result) appendData(key string, entry map[string]any) {
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	existing, _ := r.Data[key].([]any)
	r.Data[key] = append(existing, entry)
}

func (r *Result) entries(key string) []map[string]any {
	raw, _ := r.Data[key].([]any)
	entries := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if entry, ok := item.(map[string]any); ok {
			entries = append(entries, entry)
		}
	}

	return entries
}

// ResultSet is an ordered collection of results owned by a step or workflow.
type ResultSet []*Result

func (rs ResultSet) sort() {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Order < rs[j].Order })
}

// nextOrder is the order that places a new result after every existing one.
func (rs ResultSet) nextOrder() int {
	if len(rs) == 0 {
		return 0
	}

	return rs[len(rs)-1].Order + 1
}

func (rs ResultSet) index(result *Result) int {
	if result == nil {
		return -1
	}
	for i, candidate := range rs {
		if candidate == result || (result.ID != "" && candidate.ID == result.ID) {
			return i
		}
	}

	return -1
}

func (rs ResultSet) byID(id string) *Result {
	for _, result := range rs {
		if result.ID == id {
			return result
		}
	}

	return nil
}

func (rs ResultSet) byCodename(codename string) *Result {
	for _, result := range rs {
		if result.Codename == codename {
			return result
		}
	}

	return nil
}

func (rs ResultSet) adjacent(result *Result) (prev, next *Result, ok bool) {
	idx := rs.index(result)
	if idx < 0 {
		return nil, nil, false
	}
	if idx > 0 {
		prev = rs[idx-1]
	}
	if idx < len(rs)-1 {
		next = rs[idx+1]
	}

	return prev, next, true
}

func resultID(result *Result) string {
	if result == nil {
		return ""
	}

	return result.ID
}
