package reportapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type stringerValue struct{ value string }

func (s stringerValue) String() string { return s.value }

func baseTemplate() Template {
	return Template{
		Number:        1,
		Key:           "k",
		Version:       "1",
		Title:         "t",
		Query:         "SELECT 1",
		Columns:       []Column{{Name: "c", Type: "string"}},
		OutputFormats: []Format{FormatJSON},
		Binder:        func(Environment) (Runner, error) { return nil, nil },
	}
}

func TestNewHostTemplateAndRuntime(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	tpl := Template{
		Number:      5,
		Key:         "total_quantity",
		Version:     "1.0.0",
		Title:       "Total quantity",
		Description: "sum of all listings",
		Query:       "SELECT SUM(Quantity) AS Total_Food_Quantity FROM food_listings",
		Parameters: []Parameter{{
			Name:     "limit",
			Type:     "integer",
			Required: true,
		}},
		Columns: []Column{{Name: "Total_Food_Quantity", Type: "integer"}},
		Metadata: Metadata{
			Source:      "food_listings",
			Tags:        []string{"quantity"},
			Annotations: map[string]string{"k": "v"},
		},
		OutputFormats: []Format{FormatJSON, FormatCSV},
	}
	tpl.Binder = func(env Environment) (Runner, error) {
		if env.Now == nil {
			t.Fatalf("expected now function")
		}
		return func(_ context.Context, req RunRequest) (RunResult, error) {
			if req.Template.Key != "total_quantity" {
				t.Fatalf("unexpected template key: %s", req.Template.Key)
			}
			if req.Scope.Requestor != "analyst" {
				t.Fatalf("unexpected requestor: %s", req.Scope.Requestor)
			}
			if req.Parameters["limit"].(int64) != 5 {
				t.Fatalf("expected coerced limit, got %#v", req.Parameters["limit"])
			}
			return RunResult{
				Rows:        []Row{{"Total_Food_Quantity": int64(7)}},
				GeneratedAt: env.Now(),
			}, nil
		}, nil
	}

	host, err := NewHostTemplate(tpl)
	if err != nil {
		t.Fatalf("NewHostTemplate: %v", err)
	}
	if host.Slug() != "total_quantity@1.0.0" {
		t.Fatalf("unexpected slug: %s", host.Slug())
	}
	if !host.SupportsFormat(FormatCSV) || host.SupportsFormat(FormatXLSX) {
		t.Fatalf("unexpected format support")
	}
	if _, _, err := host.Run(context.Background(), nil, Scope{}, FormatJSON); !errors.Is(err, ErrNotBound) {
		t.Fatalf("expected ErrNotBound, got %v", err)
	}

	if err := host.Bind(Environment{Now: func() time.Time { return now }}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if !host.Bound() {
		t.Fatalf("expected bound template")
	}

	result, paramErrs, err := host.Run(context.Background(), map[string]any{"LIMIT": 5}, Scope{Requestor: "analyst"}, FormatCSV)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(paramErrs) != 0 {
		t.Fatalf("unexpected parameter errors: %+v", paramErrs)
	}
	if result.Format != FormatCSV {
		t.Fatalf("expected CSV format, got %s", result.Format)
	}
	if len(result.Schema) != 1 || result.Schema[0].Name != "Total_Food_Quantity" {
		t.Fatalf("expected schema defaulted from template, got %+v", result.Schema)
	}
	if !result.GeneratedAt.Equal(now) || result.GeneratedAt.Location() != time.UTC {
		t.Fatalf("expected UTC generated timestamp, got %v", result.GeneratedAt)
	}

	desc := host.Descriptor()
	desc.Metadata.Tags[0] = "mutated"
	if host.Template().Metadata.Tags[0] != "quantity" {
		t.Fatalf("descriptor must not alias template metadata")
	}
}

func TestNewHostTemplateValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Template)
	}{
		{"missing key", func(t *Template) { t.Key = "" }},
		{"missing version", func(t *Template) { t.Version = "" }},
		{"missing title", func(t *Template) { t.Title = "" }},
		{"missing query", func(t *Template) { t.Query = "" }},
		{"missing columns", func(t *Template) { t.Columns = nil }},
		{"missing formats", func(t *Template) { t.OutputFormats = nil }},
		{"missing binder", func(t *Template) { t.Binder = nil }},
		{"bad default", func(t *Template) {
			t.Parameters = []Parameter{{Name: "n", Type: "integer", Default: json.RawMessage(`"x"`)}}
		}},
	}
	for _, tc := range cases {
		tpl := baseTemplate()
		tc.mut(&tpl)
		if _, err := NewHostTemplate(tpl); !errors.Is(err, ErrInvalidTemplate) {
			t.Fatalf("expected validation failure for %s, got %v", tc.name, err)
		}
	}
}

func TestHostTemplateBindErrors(t *testing.T) {
	tpl := baseTemplate()
	host, err := NewHostTemplate(tpl)
	if err != nil {
		t.Fatalf("NewHostTemplate: %v", err)
	}
	if err := host.Bind(Environment{}); err == nil {
		t.Fatalf("expected bind error for nil runner")
	}

	tpl.Binder = func(Environment) (Runner, error) { return nil, errors.New("fail") }
	host, err = NewHostTemplate(tpl)
	if err != nil {
		t.Fatalf("NewHostTemplate: %v", err)
	}
	if err := host.Bind(Environment{}); err == nil || !strings.Contains(err.Error(), "fail") {
		t.Fatalf("expected binder failure, got %v", err)
	}
}

func TestValidateParameters(t *testing.T) {
	tpl := baseTemplate()
	tpl.Parameters = []Parameter{
		{Name: "food_type", Type: "string", Enum: []string{"Vegetarian", "Non-Vegetarian", "Vegan"}},
		{Name: "limit", Type: "integer", Required: true},
		{Name: "ratio", Type: "number"},
		{Name: "flag", Type: "boolean"},
		{Name: "as_of", Type: "timestamp"},
		{Name: "city", Type: "string", Default: json.RawMessage(`"East Aaron"`)},
		{Name: "alias", Type: "string"},
	}
	host, err := NewHostTemplate(tpl)
	if err != nil {
		t.Fatalf("NewHostTemplate: %v", err)
	}

	cleaned, errs := host.ValidateParameters(map[string]any{
		"food_type": "Vegan",
		"limit":     "42",
		"ratio":     "0.5",
		"flag":      "true",
		"as_of":     "2025-03-01 10:00:00",
		"alias":     stringerValue{value: "stringer"},
	})
	if len(errs) != 0 {
		t.Fatalf("expected successful validation, got %+v", errs)
	}
	if cleaned["limit"].(int64) != 42 {
		t.Fatalf("expected integer coercion, got %#v", cleaned["limit"])
	}
	if cleaned["ratio"].(float64) != 0.5 {
		t.Fatalf("expected number coercion, got %#v", cleaned["ratio"])
	}
	if cleaned["flag"].(bool) != true {
		t.Fatalf("expected boolean coercion")
	}
	if ts := cleaned["as_of"].(time.Time); !ts.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected timestamp coercion, got %v", ts)
	}
	if cleaned["city"].(string) != "East Aaron" {
		t.Fatalf("expected default parameter value")
	}
	if cleaned["alias"].(string) != "stringer" {
		t.Fatalf("expected stringer coercion to string")
	}

	_, paramErrs := host.ValidateParameters(map[string]any{"food_type": "Fruit", "limit": 1})
	if len(paramErrs) != 1 || !strings.Contains(paramErrs[0].Message, "value must be one of") {
		t.Fatalf("expected enum validation error, got %+v", paramErrs)
	}
	_, missing := host.ValidateParameters(nil)
	if len(missing) != 1 || missing[0].Name != "limit" {
		t.Fatalf("expected missing required parameter, got %+v", missing)
	}
	_, leftovers := host.ValidateParameters(map[string]any{"limit": 1, "mystery": 1})
	if len(leftovers) != 1 || leftovers[0].Name != "mystery" {
		t.Fatalf("expected leftover parameter error, got %+v", leftovers)
	}
	_, typed := host.ValidateParameters(map[string]any{"limit": 1.5, "as_of": "yesterday", "flag": nil})
	if len(typed) != 3 {
		t.Fatalf("expected three type errors, got %+v", typed)
	}
}

func TestSortTemplateDescriptors(t *testing.T) {
	descriptors := []TemplateDescriptor{
		{Number: 10, Key: "b"},
		{Number: 2, Key: "z"},
		{Number: 2, Key: "a"},
		{Number: 1, Key: "q"},
	}
	SortTemplateDescriptors(descriptors)
	want := []string{"q", "a", "z", "b"}
	for i, key := range want {
		if descriptors[i].Key != key {
			t.Fatalf("unexpected ordering at %d: %+v", i, descriptors)
		}
	}
}

func TestParameterErrorString(t *testing.T) {
	err := ParameterError{Name: "city", Message: "required parameter missing"}
	if err.Error() != "city: required parameter missing" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
}
