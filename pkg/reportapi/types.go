// Package reportapi describes analytical report templates, their parameters
// and run results. Templates are declared by internal/reports and bound to a
// store at startup; adapters only see the types in this package.
package reportapi

import (
	"context"
	"encoding/json"
	"time"

	"foodwaste/pkg/domain"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatXLSX Format = "xlsx"
)

// AllFormats lists every format a report can be rendered in.
var AllFormats = []Format{FormatJSON, FormatCSV, FormatHTML, FormatXLSX}

// Scope identifies who asked for a run. It is recorded, never enforced.
type Scope struct {
	Requestor string `json:"requestor,omitempty"`
}

type Parameter struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Required    bool            `json:"required"`
	Description string          `json:"description,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Example     json.RawMessage `json:"example,omitempty"`
	Default     json.RawMessage `json:"default,omitempty"`
}

type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
}

type Metadata struct {
	Source      string            `json:"source,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Environment is what a Binder receives: a read-only store and the clock used
// for time-relative reports.
type Environment struct {
	Store domain.Querier
	Now   func() time.Time
}

type Template struct {
	Number        int
	Key           string
	Version       string
	Title         string
	Description   string
	Query         string
	Parameters    []Parameter
	Columns       []Column
	Metadata      Metadata
	OutputFormats []Format
	Binder        Binder
}

type TemplateDescriptor struct {
	Number        int         `json:"number"`
	Key           string      `json:"key"`
	Version       string      `json:"version"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Query         string      `json:"query"`
	Parameters    []Parameter `json:"parameters"`
	Columns       []Column    `json:"columns"`
	Metadata      Metadata    `json:"metadata"`
	OutputFormats []Format    `json:"output_formats"`
	Slug          string      `json:"slug"`
}

type RunRequest struct {
	Template   TemplateDescriptor
	Parameters map[string]any
	Scope      Scope
}

// Row maps column names to normalized values.
type Row map[string]any

type RunResult struct {
	Schema      []Column       `json:"schema"`
	Rows        []Row          `json:"rows"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
	Format      Format         `json:"format"`
}

type Runner func(context.Context, RunRequest) (RunResult, error)

type Binder func(Environment) (Runner, error)

// ParameterError reports one invalid or missing parameter.
type ParameterError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e ParameterError) Error() string { return e.Name + ": " + e.Message }
