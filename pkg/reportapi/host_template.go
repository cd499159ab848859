package reportapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"foodwaste/pkg/domain"
)

var (
	// ErrNotBound is returned by Run before Bind succeeded.
	ErrNotBound = errors.New("reportapi: template not bound")
	// ErrInvalidTemplate wraps structural validation failures.
	ErrInvalidTemplate = errors.New("reportapi: invalid template")
)

// HostTemplate pairs a Template with the runner produced by its Binder.
type HostTemplate struct {
	tpl     Template
	runtime Runner
}

// NewHostTemplate validates tpl and returns an unbound host template.
func NewHostTemplate(tpl Template) (HostTemplate, error) {
	if err := validateTemplate(tpl); err != nil {
		return HostTemplate{}, err
	}
	return HostTemplate{tpl: cloneTemplate(tpl)}, nil
}

// Template returns a copy of the underlying template.
func (h HostTemplate) Template() Template { return cloneTemplate(h.tpl) }

// Key returns the template key.
func (h HostTemplate) Key() string { return h.tpl.Key }

// Descriptor produces a serializable snapshot of the template.
func (h HostTemplate) Descriptor() TemplateDescriptor {
	return TemplateDescriptor{
		Number:        h.tpl.Number,
		Key:           h.tpl.Key,
		Version:       h.tpl.Version,
		Title:         h.tpl.Title,
		Description:   h.tpl.Description,
		Query:         h.tpl.Query,
		Parameters:    cloneParameters(h.tpl.Parameters),
		Columns:       cloneColumns(h.tpl.Columns),
		Metadata:      cloneMetadata(h.tpl.Metadata),
		OutputFormats: cloneFormats(h.tpl.OutputFormats),
		Slug:          h.Slug(),
	}
}

// Slug returns key@version.
func (h HostTemplate) Slug() string {
	return fmt.Sprintf("%s@%s", strings.TrimSpace(h.tpl.Key), strings.TrimSpace(h.tpl.Version))
}

// SupportsFormat reports whether the template declares the requested format.
func (h HostTemplate) SupportsFormat(format Format) bool {
	for _, candidate := range h.tpl.OutputFormats {
		if candidate == format {
			return true
		}
	}
	return false
}

// ValidateParameters returns the coerced parameter set plus any validation errors.
func (h HostTemplate) ValidateParameters(params map[string]any) (map[string]any, []ParameterError) {
	return validateParameters(h.tpl.Parameters, params)
}

// Bind attaches a runner built from env.
func (h *HostTemplate) Bind(env Environment) error {
	if h == nil {
		return errors.New("reportapi: host template nil")
	}
	if h.tpl.Binder == nil {
		return errors.New("reportapi: template binder missing")
	}
	runner, err := h.tpl.Binder(env)
	if err != nil {
		return err
	}
	if runner == nil {
		return errors.New("reportapi: template binder returned nil runner")
	}
	h.runtime = runner
	return nil
}

// Bound reports whether Bind has succeeded.
func (h HostTemplate) Bound() bool { return h.runtime != nil }

// Run validates params and executes the bound runner. Parameter problems are
// returned separately from execution errors so callers can map them to 400.
func (h HostTemplate) Run(ctx context.Context, params map[string]any, scope Scope, format Format) (RunResult, []ParameterError, error) {
	if h.runtime == nil {
		return RunResult{}, nil, ErrNotBound
	}
	cleaned, errs := validateParameters(h.tpl.Parameters, params)
	if len(errs) > 0 {
		return RunResult{}, errs, nil
	}
	result, err := h.runtime(ctx, RunRequest{
		Template:   h.Descriptor(),
		Parameters: cleaned,
		Scope:      scope,
	})
	if err != nil {
		return RunResult{}, nil, err
	}
	if len(result.Schema) == 0 {
		result.Schema = cloneColumns(h.tpl.Columns)
	}
	result.GeneratedAt = result.GeneratedAt.UTC()
	result.Format = format
	return result, nil, nil
}

// SortTemplateDescriptors orders descriptors by report number, then key.
func SortTemplateDescriptors(descriptors []TemplateDescriptor) {
	sort.SliceStable(descriptors, func(i, j int) bool {
		if descriptors[i].Number == descriptors[j].Number {
			return descriptors[i].Key < descriptors[j].Key
		}
		return descriptors[i].Number < descriptors[j].Number
	})
}

func validateTemplate(tpl Template) error {
	switch {
	case strings.TrimSpace(tpl.Key) == "":
		return fmt.Errorf("%w: key required", ErrInvalidTemplate)
	case strings.TrimSpace(tpl.Version) == "":
		return fmt.Errorf("%w: %s version required", ErrInvalidTemplate, tpl.Key)
	case strings.TrimSpace(tpl.Title) == "":
		return fmt.Errorf("%w: %s title required", ErrInvalidTemplate, tpl.Key)
	case strings.TrimSpace(tpl.Query) == "":
		return fmt.Errorf("%w: %s query required", ErrInvalidTemplate, tpl.Key)
	case len(tpl.Columns) == 0:
		return fmt.Errorf("%w: %s requires at least one column", ErrInvalidTemplate, tpl.Key)
	case len(tpl.OutputFormats) == 0:
		return fmt.Errorf("%w: %s must declare output formats", ErrInvalidTemplate, tpl.Key)
	case tpl.Binder == nil:
		return fmt.Errorf("%w: %s binder required", ErrInvalidTemplate, tpl.Key)
	}
	for _, param := range tpl.Parameters {
		if len(param.Default) == 0 {
			continue
		}
		if _, err := coerceDefaultParameter(param); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, tpl.Key, err)
		}
	}
	return nil
}

func validateParameters(definitions []Parameter, supplied map[string]any) (map[string]any, []ParameterError) {
	cleaned := make(map[string]any)
	var errs []ParameterError
	provided := make(map[string]struct{}, len(supplied))
	for k := range supplied {
		provided[strings.ToLower(k)] = struct{}{}
	}
	for _, param := range definitions {
		key := strings.ToLower(param.Name)
		val, ok := findParamValue(param.Name, supplied)
		if !ok {
			if param.Required {
				errs = append(errs, ParameterError{Name: param.Name, Message: "required parameter missing"})
				continue
			}
			if len(param.Default) > 0 {
				coerced, err := coerceDefaultParameter(param)
				if err != nil {
					errs = append(errs, ParameterError{Name: param.Name, Message: err.Error()})
					continue
				}
				cleaned[param.Name] = coerced
			}
			continue
		}
		delete(provided, key)
		coerced, err := coerceParameter(param, val)
		if err != nil {
			errs = append(errs, ParameterError{Name: param.Name, Message: err.Error()})
			continue
		}
		cleaned[param.Name] = coerced
	}
	for leftover := range provided {
		errs = append(errs, ParameterError{Name: leftover, Message: "parameter not declared"})
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Name < errs[j].Name })
	}
	return cleaned, errs
}

func coerceDefaultParameter(param Parameter) (any, error) {
	var raw any
	if err := json.Unmarshal(param.Default, &raw); err != nil {
		return nil, fmt.Errorf("parameter %s default is invalid JSON: %w", param.Name, err)
	}
	return coerceParameter(param, raw)
}

func findParamValue(name string, supplied map[string]any) (any, bool) {
	if supplied == nil {
		return nil, false
	}
	if val, ok := supplied[name]; ok {
		return val, true
	}
	lower := strings.ToLower(name)
	for k, v := range supplied {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

func coerceParameter(param Parameter, raw any) (any, error) {
	if raw == nil {
		return nil, fmt.Errorf("parameter %s cannot be null", param.Name)
	}
	switch param.Type {
	case "string":
		var val string
		switch v := raw.(type) {
		case string:
			val = v
		case fmt.Stringer:
			val = v.String()
		default:
			return nil, fmt.Errorf("parameter %s expects string", param.Name)
		}
		if len(param.Enum) > 0 && !domain.Contains(param.Enum, val) {
			return nil, enumError(param.Enum)
		}
		return val, nil
	case "integer":
		switch v := raw.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("parameter %s expects integer", param.Name)
			}
			return int64(v), nil
		case string:
			parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %s expects integer", param.Name)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("parameter %s expects integer", param.Name)
		}
	case "number":
		switch v := raw.(type) {
		case float32:
			return float64(v), nil
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %s expects number", param.Name)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("parameter %s expects number", param.Name)
		}
	case "boolean":
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("parameter %s expects boolean", param.Name)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("parameter %s expects boolean", param.Name)
		}
	case "timestamp":
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			parsed, err := domain.ParseTimestamp(strings.TrimSpace(v))
			if err != nil || parsed == nil {
				return nil, fmt.Errorf("parameter %s expects timestamp", param.Name)
			}
			return *parsed, nil
		default:
			return nil, fmt.Errorf("parameter %s expects timestamp", param.Name)
		}
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", param.Type)
	}
}

func enumError(options []string) error {
	return fmt.Errorf("value must be one of: %s", strings.Join(options, ", "))
}

func cloneTemplate(t Template) Template {
	cloned := t
	cloned.Parameters = cloneParameters(t.Parameters)
	cloned.Columns = cloneColumns(t.Columns)
	cloned.Metadata = cloneMetadata(t.Metadata)
	cloned.OutputFormats = cloneFormats(t.OutputFormats)
	return cloned
}

func cloneParameters(params []Parameter) []Parameter {
	if len(params) == 0 {
		return nil
	}
	cloned := make([]Parameter, len(params))
	copy(cloned, params)
	for i := range cloned {
		if len(cloned[i].Example) > 0 {
			cloned[i].Example = append(json.RawMessage(nil), cloned[i].Example...)
		}
		if len(cloned[i].Default) > 0 {
			cloned[i].Default = append(json.RawMessage(nil), cloned[i].Default...)
		}
		if len(cloned[i].Enum) > 0 {
			cloned[i].Enum = append([]string(nil), cloned[i].Enum...)
		}
	}
	return cloned
}

func cloneColumns(columns []Column) []Column {
	if len(columns) == 0 {
		return nil
	}
	cloned := make([]Column, len(columns))
	copy(cloned, columns)
	return cloned
}

func cloneFormats(formats []Format) []Format {
	if len(formats) == 0 {
		return nil
	}
	cloned := make([]Format, len(formats))
	copy(cloned, formats)
	return cloned
}

func cloneMetadata(metadata Metadata) Metadata {
	cloned := metadata
	if len(metadata.Tags) > 0 {
		cloned.Tags = append([]string(nil), metadata.Tags...)
	}
	if len(metadata.Annotations) > 0 {
		cloned.Annotations = make(map[string]string, len(metadata.Annotations))
		for k, v := range metadata.Annotations {
			cloned.Annotations[k] = v
		}
	}
	return cloned
}
