// Package reports declares the 25 dashboard reports and binds them to a store.
// Each report is a Query compiled per dialect at run time; user-supplied and
// time-dependent values always travel as bound arguments.
package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foodwaste/internal/core"
	"foodwaste/pkg/reportapi"
)

// Version is stamped on every report template.
const Version = "1.0.0"

// ErrUnknownReport is returned when a key does not name a catalog entry.
var ErrUnknownReport = errors.New("reports: unknown report")

// Catalog holds the bound report templates in display order.
type Catalog struct {
	templates []reportapi.HostTemplate
	index     map[string]int
	logger    core.Logger
	metrics   core.MetricsRecorder
	now       func() time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger records failed runs.
func WithLogger(logger core.Logger) Option {
	return func(c *Catalog) { c.logger = logger }
}

// WithMetricsRecorder observes every run under the operation "report:<key>".
func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(c *Catalog) { c.metrics = recorder }
}

// NewCatalog builds and binds every report against env.
func NewCatalog(env reportapi.Environment, settings Settings, opts ...Option) (*Catalog, error) {
	if env.Store == nil {
		return nil, errors.New("reports: store required")
	}
	if env.Now == nil {
		env.Now = func() time.Time { return time.Now().UTC() }
	}
	c := &Catalog{index: make(map[string]int), now: env.Now}
	for _, opt := range opts {
		opt(c)
	}
	dialect := env.Store.Dialect()
	for _, def := range definitions(settings) {
		columns := def.columns()
		tpl := reportapi.Template{
			Number:        def.number,
			Key:           def.key,
			Version:       Version,
			Title:         def.title,
			Description:   def.description,
			Query:         Render(def.query, dialect),
			Parameters:    def.params,
			Columns:       columns,
			Metadata:      reportapi.Metadata{Source: string(dialect), Tags: def.tags, Annotations: def.annotations},
			OutputFormats: reportapi.AllFormats,
			Binder:        bindQuery(def.query, columns),
		}
		host, err := reportapi.NewHostTemplate(tpl)
		if err != nil {
			return nil, err
		}
		if err := host.Bind(env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", def.key, err)
		}
		c.index[def.key] = len(c.templates)
		c.templates = append(c.templates, host)
	}
	return c, nil
}

// bindQuery produces the Binder shared by every report: compile for the
// store's dialect, query, then map rows positionally onto columns.
func bindQuery(q Query, columns []reportapi.Column) reportapi.Binder {
	return func(env reportapi.Environment) (reportapi.Runner, error) {
		if env.Store == nil {
			return nil, errors.New("reports: store required")
		}
		now := env.Now
		if now == nil {
			now = func() time.Time { return time.Now().UTC() }
		}
		dialect := env.Store.Dialect()
		return func(ctx context.Context, req reportapi.RunRequest) (reportapi.RunResult, error) {
			generated := now()
			query, args, err := Compile(q, dialect, bindParams(req.Parameters, generated))
			if err != nil {
				return reportapi.RunResult{}, err
			}
			raw, err := env.Store.QueryRows(ctx, query, args...)
			if err != nil {
				return reportapi.RunResult{}, fmt.Errorf("run %s: %w", req.Template.Key, err)
			}
			rows := make([]reportapi.Row, 0, len(raw))
			for n, values := range raw {
				if len(values) != len(columns) {
					return reportapi.RunResult{}, fmt.Errorf("run %s: row %d has %d values, want %d", req.Template.Key, n+1, len(values), len(columns))
				}
				row := make(reportapi.Row, len(columns))
				for i, col := range columns {
					v, err := normalize(values[i], col.Type)
					if err != nil {
						return reportapi.RunResult{}, fmt.Errorf("run %s: %s: %w", req.Template.Key, col.Name, err)
					}
					row[col.Name] = v
				}
				rows = append(rows, row)
			}
			return reportapi.RunResult{
				Schema:      columns,
				Rows:        rows,
				GeneratedAt: generated,
			}, nil
		}, nil
	}
}

// Templates returns the bound templates in report-number order.
func (c *Catalog) Templates() []reportapi.HostTemplate {
	return append([]reportapi.HostTemplate(nil), c.templates...)
}

// Descriptors returns the template descriptors in report-number order.
func (c *Catalog) Descriptors() []reportapi.TemplateDescriptor {
	out := make([]reportapi.TemplateDescriptor, len(c.templates))
	for i, tpl := range c.templates {
		out[i] = tpl.Descriptor()
	}
	return out
}

// Resolve looks a template up by key.
func (c *Catalog) Resolve(key string) (reportapi.HostTemplate, bool) {
	i, ok := c.index[key]
	if !ok {
		return reportapi.HostTemplate{}, false
	}
	return c.templates[i], true
}

// Run executes one report. Parameter problems are returned as the second
// value; execution errors as the third.
func (c *Catalog) Run(ctx context.Context, key string, params map[string]any, scope reportapi.Scope, format reportapi.Format) (reportapi.RunResult, []reportapi.ParameterError, error) {
	tpl, ok := c.Resolve(key)
	if !ok {
		return reportapi.RunResult{}, nil, fmt.Errorf("%w: %s", ErrUnknownReport, key)
	}
	start := c.now()
	result, paramErrs, err := tpl.Run(ctx, params, scope, format)
	if c.metrics != nil {
		c.metrics.Observe(ctx, "report:"+key, err == nil && len(paramErrs) == 0, c.now().Sub(start))
	}
	if err != nil && c.logger != nil {
		c.logger.Error("report run failed", "report", key, "error", err)
	}
	return result, paramErrs, err
}

// Panel is one rendered report on the dashboard.
type Panel struct {
	Descriptor reportapi.TemplateDescriptor
	Result     reportapi.RunResult
	Err        error
}

// RunAll executes every report sequentially with default parameters. A
// failing report is captured on its panel and does not stop the others.
func (c *Catalog) RunAll(ctx context.Context) []Panel {
	panels := make([]Panel, 0, len(c.templates))
	for _, tpl := range c.templates {
		panel := Panel{Descriptor: tpl.Descriptor()}
		result, paramErrs, err := c.Run(ctx, tpl.Key(), nil, reportapi.Scope{Requestor: "dashboard"}, reportapi.FormatHTML)
		switch {
		case err != nil:
			panel.Err = err
		case len(paramErrs) > 0:
			panel.Err = paramErrs[0]
		default:
			panel.Result = result
		}
		panels = append(panels, panel)
	}
	return panels
}
