package reports

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"foodwaste/pkg/domain"
)

// ErrMissingParameter is returned by Compile when a query references a
// parameter absent from the supplied set.
var ErrMissingParameter = errors.New("reports: missing query parameter")

// Expr is a dialect-aware SQL fragment. Values are never inlined; they are
// emitted as placeholders and appended to the argument list.
type Expr interface {
	write(b *builder)
}

// Query is the declarative form of a report. Compile turns it into SQL for a
// given dialect.
type Query struct {
	Distinct bool
	Fields   []Field
	From     Source
	Joins    []Join
	Where    []Expr
	GroupBy  []Expr
	OrderBy  []Order
	Limit    int
	Rank     *Rank
}

// Source is either a table or a derived query. Derived sources need an alias.
type Source struct {
	Table string
	Sub   *Query
	Alias string
}

// Join adds an inner or left join on a table.
type Join struct {
	Left  bool
	Table string
	Alias string
	On    Expr
}

// Field is one projected column. Type is the reportapi column type used to
// normalize driver values.
type Field struct {
	Expr        Expr
	As          string
	Type        string
	Description string
}

// Name is the output column name: the alias, or the unqualified column.
func (f Field) Name() string {
	if f.As != "" {
		return f.As
	}
	if c, ok := f.Expr.(column); ok {
		name := string(c)
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			return name[i+1:]
		}
		return name
	}
	return ""
}

type Order struct {
	Expr Expr
	Desc bool
}

// Rank keeps the first row per partition after ordering. The grouped query is
// wrapped in a derived table carrying a ROW_NUMBER column.
type Rank struct {
	PartitionBy []Expr
	OrderBy     []Order
}

const rankColumn = "rank_position"

type builder struct {
	dialect domain.Dialect
	params  map[string]any
	render  bool
	sb      strings.Builder
	args    []any
	err     error
}

func (b *builder) str(s string) { b.sb.WriteString(s) }

func (b *builder) placeholder(v any) {
	b.args = append(b.args, v)
	if b.dialect == domain.DialectPostgres {
		b.str("$" + strconv.Itoa(len(b.args)))
		return
	}
	b.str("?")
}

func (b *builder) list(exprs []Expr) {
	for i, e := range exprs {
		if i > 0 {
			b.str(", ")
		}
		e.write(b)
	}
}

func (b *builder) orders(orders []Order) {
	for i, o := range orders {
		if i > 0 {
			b.str(", ")
		}
		o.Expr.write(b)
		if o.Desc {
			b.str(" DESC")
		}
	}
}

// Compile renders q for dialect with params bound positionally.
func Compile(q Query, dialect domain.Dialect, params map[string]any) (string, []any, error) {
	b := &builder{dialect: dialect, params: params}
	b.query(q)
	if b.err != nil {
		return "", nil, b.err
	}
	return b.sb.String(), b.args, nil
}

// Render returns the SQL text of q without resolving parameters. It is used
// for display in report descriptors.
func Render(q Query, dialect domain.Dialect) string {
	b := &builder{dialect: dialect, render: true}
	b.query(q)
	return b.sb.String()
}

func (b *builder) query(q Query) {
	if q.Rank != nil {
		b.ranked(q)
		return
	}
	b.str("SELECT ")
	if q.Distinct {
		b.str("DISTINCT ")
	}
	for i, f := range q.Fields {
		if i > 0 {
			b.str(", ")
		}
		f.Expr.write(b)
		if f.As != "" {
			b.str(" AS " + f.As)
		}
	}
	b.body(q)
	b.tail(q)
}

func (b *builder) ranked(q Query) {
	b.str("SELECT ")
	for i, f := range q.Fields {
		if i > 0 {
			b.str(", ")
		}
		b.str(f.Name())
	}
	b.str(" FROM (SELECT ")
	for _, f := range q.Fields {
		f.Expr.write(b)
		b.str(" AS " + f.Name() + ", ")
	}
	b.str("ROW_NUMBER() OVER (PARTITION BY ")
	b.list(q.Rank.PartitionBy)
	b.str(" ORDER BY ")
	b.orders(q.Rank.OrderBy)
	b.str(") AS " + rankColumn)
	b.body(q)
	b.str(") AS ranked WHERE " + rankColumn + " = 1")
	b.tail(q)
}

func (b *builder) body(q Query) {
	b.str(" FROM ")
	if q.From.Sub != nil {
		b.str("(")
		b.query(*q.From.Sub)
		b.str(")")
	} else {
		b.str(q.From.Table)
	}
	if q.From.Alias != "" {
		b.str(" AS " + q.From.Alias)
	}
	for _, j := range q.Joins {
		if j.Left {
			b.str(" LEFT JOIN ")
		} else {
			b.str(" JOIN ")
		}
		b.str(j.Table)
		if j.Alias != "" {
			b.str(" AS " + j.Alias)
		}
		b.str(" ON ")
		j.On.write(b)
	}
	if len(q.Where) > 0 {
		b.str(" WHERE ")
		for i, cond := range q.Where {
			if i > 0 {
				b.str(" AND ")
			}
			cond.write(b)
		}
	}
	if len(q.GroupBy) > 0 {
		b.str(" GROUP BY ")
		b.list(q.GroupBy)
	}
}

func (b *builder) tail(q Query) {
	if len(q.OrderBy) > 0 {
		b.str(" ORDER BY ")
		b.orders(q.OrderBy)
	}
	if q.Limit > 0 {
		b.str(" LIMIT " + strconv.Itoa(q.Limit))
	}
}

type column string

func (c column) write(b *builder) { b.str(string(c)) }

// Col references a column, optionally qualified ("fl.Quantity").
func Col(name string) Expr { return column(name) }

type value struct{ v any }

func (v value) write(b *builder) { b.placeholder(v.v) }

// Value binds a constant as a query argument.
func Value(v any) Expr { return value{v: v} }

type param string

func (p param) write(b *builder) {
	if b.render {
		b.placeholder(nil)
		return
	}
	v, ok := b.params[string(p)]
	if !ok {
		if b.err == nil {
			b.err = fmt.Errorf("%w: %s", ErrMissingParameter, string(p))
		}
		return
	}
	b.placeholder(v)
}

// Param binds a named run parameter.
func Param(name string) Expr { return param(name) }

type call struct {
	name     string
	distinct bool
	arg      Expr
}

func (c call) write(b *builder) {
	b.str(c.name + "(")
	if c.distinct {
		b.str("DISTINCT ")
	}
	c.arg.write(b)
	b.str(")")
}

func Count(e Expr) Expr         { return call{name: "COUNT", arg: e} }
func CountDistinct(e Expr) Expr { return call{name: "COUNT", distinct: true, arg: e} }
func Sum(e Expr) Expr           { return call{name: "SUM", arg: e} }
func Avg(e Expr) Expr           { return call{name: "AVG", arg: e} }

type binary struct {
	left  Expr
	op    string
	right Expr
}

func (x binary) write(b *builder) {
	x.left.write(b)
	b.str(" " + x.op + " ")
	x.right.write(b)
}

func Eq(left, right Expr) Expr { return binary{left: left, op: "=", right: right} }
func Lt(left, right Expr) Expr { return binary{left: left, op: "<", right: right} }

type isNull struct{ e Expr }

func (x isNull) write(b *builder) {
	x.e.write(b)
	b.str(" IS NULL")
}

func IsNull(e Expr) Expr { return isNull{e: e} }

type monthOf struct{ e Expr }

func (m monthOf) write(b *builder) {
	if b.dialect == domain.DialectPostgres {
		b.str("to_char(CAST(")
		m.e.write(b)
		b.str(" AS timestamp), 'YYYY-MM')")
		return
	}
	b.str("STRFTIME('%Y-%m', ")
	m.e.write(b)
	b.str(")")
}

// MonthOf truncates a stored timestamp to its YYYY-MM month.
func MonthOf(e Expr) Expr { return monthOf{e: e} }

type percent struct {
	part  Expr
	whole Query
}

func (p percent) write(b *builder) {
	b.str("CAST(")
	p.part.write(b)
	if b.dialect == domain.DialectPostgres {
		b.str(" AS DOUBLE PRECISION)")
	} else {
		b.str(" AS REAL)")
	}
	b.str(" * 100 / (")
	b.query(p.whole)
	b.str(")")
}

// Percent computes part as a floating percentage of the scalar subquery whole.
func Percent(part Expr, whole Query) Expr { return percent{part: part, whole: whole} }
