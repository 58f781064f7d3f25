package resflow

import (
	"encoding/json"
	"fmt"
	"sort"
)

// StepKind is the behavior shared by every step of one type.
type StepKind interface {
	Type() StepType
	InitParameters() Parameters
	DefaultOptions() map[string]any
	Controller() ControllerMetadata
	// Validate runs type-specific checks after required parameters were verified.
	Validate(step *WorkflowStep) error
}

type completionExtender interface {
	CompleteStatuses() []Status
}

var stepKinds = map[StepType]StepKind{
	StepTypeGeneric:      genericStepKind{},
	StepTypeFormInput:    formInputStepKind{},
	StepTypeSetStatus:    setStatusStepKind{},
	StepTypeTableInput:   tableInputStepKind{},
	StepTypeSpatialInput: spatialInputStepKind{},
	StepTypeResults:      resultsStepKind{},
}

func LookupStepKind(stepType StepType) (StepKind, error) {
	kind, ok := stepKinds[stepType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, stepType)
	}

	return kind, nil
}

func StepTypes() []StepType {
	types := make([]StepType, 0, len(stepKinds))
	for stepType := range stepKinds {
		types = append(types, stepType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

type genericStepKind struct{}

func (genericStepKind) Type() StepType                 { return StepTypeGeneric }
func (genericStepKind) InitParameters() Parameters     { return Parameters{} }
func (genericStepKind) DefaultOptions() map[string]any { return map[string]any{} }
func (genericStepKind) Validate(*WorkflowStep) error   { return nil }
func (genericStepKind) Controller() ControllerMetadata {
	return ControllerMetadata{Path: "workflow_views.GenericWorkflowView"}
}

const (
	ParamFormValues   = "form-values"
	ParamResourceName = "resource_name"
)

type formInputStepKind struct{}

func (formInputStepKind) Type() StepType { return StepTypeFormInput }

func (formInputStepKind) InitParameters() Parameters {
	return Parameters{
		ParamFormValues: {
			Help:     "Values from form",
			Value:    map[string]any{},
			Required: true,
		},
		ParamResourceName: {
			Help:     "The name of the resource",
			Value:    "",
			Required: true,
		},
	}
}

func (formInputStepKind) DefaultOptions() map[string]any {
	return map[string]any{
		"form_title":   nil,
		"status_label": nil,
		"param_class":  map[string]any{},
		"renderer":     "django",
	}
}

func (formInputStepKind) Controller() ControllerMetadata {
	return ControllerMetadata{Path: "workflow_views.FormInputWV"}
}

func (formInputStepKind) Validate(step *WorkflowStep) error {
	values, err := step.Parameter(ParamFormValues)
	if err != nil {
		return err
	}
	if _, ok := asMap(values); !ok {
		return newValidationError(step, ParamFormValues, "form values must be an object")
	}

	return nil
}

const ParamComments = "comments"

type setStatusStepKind struct{}

func (setStatusStepKind) Type() StepType { return StepTypeSetStatus }

func (setStatusStepKind) InitParameters() Parameters {
	return Parameters{
		ParamComments: {
			Help:     "Comments on reason for changing status to this status.",
			Value:    "",
			Required: false,
		},
	}
}

func (setStatusStepKind) DefaultOptions() map[string]any {
	return map[string]any{
		"form_title":   nil,
		"status_label": nil,
		"statuses": []any{
			map[string]any{"status": string(StatusComplete), "label": nil},
		},
	}
}

func (setStatusStepKind) Controller() ControllerMetadata {
	return ControllerMetadata{Path: "workflow_views.SetStatusWV"}
}

// CompleteStatuses lets review outcomes close the step so the workflow moves on.
func (setStatusStepKind) CompleteStatuses() []Status {
	return []Status{StatusComplete, StatusApproved, StatusReviewed, StatusSubmitted, StatusRejected}
}

func (setStatusStepKind) Validate(step *WorkflowStep) error {
	_, err := AllowedStatuses(step)

	return err
}

// AllowedStatuses returns the statuses a set-status step offers to the user.
func AllowedStatuses(step *WorkflowStep) ([]Status, error) {
	raw, ok := step.Options["statuses"].([]any)
	if !ok || len(raw) == 0 {
		return nil, newValidationError(step, "", "at least one status must be configured")
	}

	statuses := make([]Status, 0, len(raw))
	for i, item := range raw {
		entry, isMap := asMap(item)
		if !isMap {
			return nil, newValidationError(step, "", "status entry %d must be an object", i)
		}
		value, isString := entry["status"].(string)
		if !isString || !Status(value).IsValid() {
			return nil, newValidationError(step, "", "status entry %d has invalid status %v", i, entry["status"])
		}
		statuses = append(statuses, Status(value))
	}

	return statuses, nil
}

const ParamDataset = "dataset"

type tableInputStepKind struct{}

func (tableInputStepKind) Type() StepType { return StepTypeTableInput }

func (tableInputStepKind) InitParameters() Parameters {
	return Parameters{
		ParamDataset: {
			Help:     "The tabular dataset entered by the user.",
			Value:    nil,
			Required: false,
		},
	}
}

func (tableInputStepKind) DefaultOptions() map[string]any {
	return map[string]any{
		"dataset_title":     "Dataset",
		"template_dataset":  map[string]any{"X": []any{}, "Y": []any{}},
		"read_only_columns": []any{},
		"plot_columns":      []any{},
		"optional_columns":  []any{},
		"max_rows":          1000,
		"empty_rows":        10,
	}
}

func (tableInputStepKind) Controller() ControllerMetadata {
	return ControllerMetadata{Path: "workflow_views.TableInputWV"}
}

func (tableInputStepKind) Validate(step *WorkflowStep) error {
	value, err := step.Parameter(ParamDataset)
	if err != nil {
		return err
	}

	title := step.OptionString("dataset_title")
	if title == "" {
		title = "Dataset"
	}

	dataset, ok := asMap(value)
	if !ok || len(dataset) == 0 {
		return newValidationError(step, ParamDataset, "Please fill in the %s to continue.", title)
	}

	template, _ := asMap(step.Options["template_dataset"])
	optional := stringSet(step.Options["optional_columns"])

	for column := range dataset {
		if _, known := template[column]; !known && len(template) > 0 {
			return newValidationError(step, ParamDataset, "unknown column %q in %s", column, title)
		}
	}

	rows := -1
	for column := range template {
		cells, present := dataset[column].([]any)
		if !present {
			if _, isOptional := optional[column]; isOptional {
				continue
			}

			return newValidationError(step, ParamDataset, "column %q is required in %s", column, title)
		}
		if rows >= 0 && len(cells) != rows {
			return newValidationError(step, ParamDataset, "columns of %s must have the same length", title)
		}
		rows = len(cells)
	}

	if maxRows, ok := toInt(step.Options["max_rows"]); ok && rows > maxRows {
		return newValidationError(step, ParamDataset, "%s has %d rows, at most %d allowed", title, rows, maxRows)
	}

	return nil
}

const ParamGeometry = "geometry"

type spatialInputStepKind struct{}

func (spatialInputStepKind) Type() StepType { return StepTypeSpatialInput }

func (spatialInputStepKind) InitParameters() Parameters {
	return Parameters{
		ParamGeometry: {
			Help:     "Geometry drawn or uploaded by the user as a GeoJSON FeatureCollection.",
			Value:    nil,
			Required: true,
		},
	}
}

func (spatialInputStepKind) DefaultOptions() map[string]any {
	return map[string]any{
		"shapes":                []any{"points", "lines", "polygons", "extents"},
		"singular_name":         "Feature",
		"plural_name":           "Features",
		"allow_shapefile":       true,
		"allow_drawing":         true,
		"allow_edit_attributes": true,
		"snapping_enabled":      true,
		"snapping_layer":        map[string]any{},
		"snapping_options":      map[string]any{},
	}
}

func (spatialInputStepKind) Controller() ControllerMetadata {
	return ControllerMetadata{Path: "workflow_views.SpatialInputMWV"}
}

var geometryShapes = map[string][]string{
	"Point":           {"points"},
	"MultiPoint":      {"points"},
	"LineString":      {"lines"},
	"MultiLineString": {"lines"},
	"Polygon":         {"polygons", "extents"},
	"MultiPolygon":    {"polygons"},
}

func (spatialInputStepKind) Validate(step *WorkflowStep) error {
	value, err := step.Parameter(ParamGeometry)
	if err != nil {
		return err
	}

	collection, err := decodeGeoJSON(value)
	if err != nil {
		return newValidationError(step, ParamGeometry, "invalid GeoJSON: %v", err)
	}
	if collection["type"] != "FeatureCollection" {
		return newValidationError(step, ParamGeometry, "expected a FeatureCollection, got %v", collection["type"])
	}

	features, ok := collection["features"].([]any)
	if !ok || len(features) == 0 {
		return newValidationError(step, ParamGeometry, "at least one feature is required")
	}

	allowed := stringSet(step.Options["shapes"])
	for i, item := range features {
		feature, isMap := asMap(item)
		if !isMap {
			return newValidationError(step, ParamGeometry, "feature %d is not an object", i)
		}
		geometry, isMap := asMap(feature["geometry"])
		if !isMap {
			return newValidationError(step, ParamGeometry, "feature %d has no geometry", i)
		}

		geometryType, _ := geometry["type"].(string)
		shapes, known := geometryShapes[geometryType]
		if !known {
			return newValidationError(step, ParamGeometry, "feature %d has unsupported geometry %q", i, geometryType)
		}
		if !anyIn(shapes, allowed) {
			return newValidationError(step, ParamGeometry, "%s geometries are not allowed", geometryType)
		}

		if err := validateCoordinates(geometryType, geometry["coordinates"]); err != nil {
			return newValidationError(step, ParamGeometry, "feature %d: %v", i, err)
		}
	}

	return nil
}

func decodeGeoJSON(value any) (map[string]any, error) {
	switch typed := value.(type) {
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(typed), &decoded); err != nil {
			return nil, err
		}

		return decoded, nil
	case []byte:
		var decoded map[string]any
		if err := json.Unmarshal(typed, &decoded); err != nil {
			return nil, err
		}

		return decoded, nil
	default:
		decoded, ok := asMap(value)
		if !ok {
			return nil, fmt.Errorf("unexpected value of type %T", value)
		}

		return decoded, nil
	}
}

func validateCoordinates(geometryType string, coordinates any) error {
	switch geometryType {
	case "Point":
		return validatePosition(coordinates)
	case "MultiPoint", "LineString":
		positions, ok := coordinates.([]any)
		if !ok || len(positions) == 0 {
			return fmt.Errorf("%s requires positions", geometryType)
		}
		if geometryType == "LineString" && len(positions) < 2 {
			return fmt.Errorf("LineString requires at least 2 positions")
		}
		for _, position := range positions {
			if err := validatePosition(position); err != nil {
				return err
			}
		}

		return nil
	case "MultiLineString":
		lines, ok := coordinates.([]any)
		if !ok || len(lines) == 0 {
			return fmt.Errorf("MultiLineString requires lines")
		}
		for _, line := range lines {
			if err := validateCoordinates("LineString", line); err != nil {
				return err
			}
		}

		return nil
	case "Polygon":
		rings, ok := coordinates.([]any)
		if !ok || len(rings) == 0 {
			return fmt.Errorf("Polygon requires at least one ring")
		}
		for _, ring := range rings {
			if err := validateRing(ring); err != nil {
				return err
			}
		}

		return nil
	case "MultiPolygon":
		polygons, ok := coordinates.([]any)
		if !ok || len(polygons) == 0 {
			return fmt.Errorf("MultiPolygon requires polygons")
		}
		for _, polygon := range polygons {
			if err := validateCoordinates("Polygon", polygon); err != nil {
				return err
			}
		}

		return nil
	default:
		return fmt.Errorf("unsupported geometry %q", geometryType)
	}
}

func validateRing(ring any) error {
	positions, ok := ring.([]any)
	if !ok || len(positions) < 4 {
		return fmt.Errorf("polygon ring requires at least 4 positions")
	}
	for _, position := range positions {
		if err := validatePosition(position); err != nil {
			return err
		}
	}

	first, _ := positions[0].([]any)
	last, _ := positions[len(positions)-1].([]any)
	for i := range first {
		if i >= len(last) || first[i] != last[i] {
			return fmt.Errorf("polygon ring is not closed")
		}
	}

	return nil
}

func validatePosition(position any) error {
	coords, ok := position.([]any)
	if !ok || len(coords) < 2 {
		return fmt.Errorf("position requires at least 2 coordinates")
	}
	for _, coord := range coords {
		switch coord.(type) {
		case float64, float32, int, int64:
		default:
			return fmt.Errorf("coordinate %v is not a number", coord)
		}
	}

	return nil
}

type resultsStepKind struct{}

func (resultsStepKind) Type() StepType                 { return StepTypeResults }
func (resultsStepKind) InitParameters() Parameters     { return Parameters{} }
func (resultsStepKind) DefaultOptions() map[string]any { return map[string]any{} }
func (resultsStepKind) Validate(*WorkflowStep) error   { return nil }
func (resultsStepKind) Controller() ControllerMetadata {
	return ControllerMetadata{Path: "workflow_views.ResultsWorkflowView"}
}

func stringSet(value any) map[string]struct{} {
	set := make(map[string]struct{})
	switch typed := value.(type) {
	case []string:
		for _, s := range typed {
			set[s] = struct{}{}
		}
	case []any:
		for _, item := range typed {
			if s, ok := item.(string); ok {
				set[s] = struct{}{}
			}
		}
	}

	return set
}

func anyIn(values []string, set map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}

	return false
}

func toInt(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case float64:
		return int(typed), true
	default:
		return 0, false
	}
}
