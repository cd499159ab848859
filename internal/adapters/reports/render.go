package reports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"path"

	"github.com/xuri/excelize/v2"

	"foodwaste/pkg/domain"
	"foodwaste/pkg/reportapi"
)

const xlsxSheet = "Report"

var contentTypes = map[reportapi.Format]string{
	reportapi.FormatJSON: "application/json",
	reportapi.FormatCSV:  "text/csv",
	reportapi.FormatHTML: "text/html; charset=utf-8",
	reportapi.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"cell": reportapi.FormatValue,
}).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Report.Title}}</title></head>
<body>
<h1>{{.Report.Title}}</h1>
<p>Generated {{.GeneratedAt}}</p>
<table>
<thead><tr>{{range .Columns}}<th>{{.Name}}</th>{{end}}</tr></thead>
<tbody>
{{- range $row := .Rows}}
<tr>{{range $.Columns}}<td>{{cell (index $row .Name)}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
</body></html>
`))

// render encodes result in format.
func render(format reportapi.Format, descriptor reportapi.TemplateDescriptor, result reportapi.RunResult) ([]byte, error) {
	columns := columnsOf(descriptor, result)
	switch format {
	case reportapi.FormatJSON:
		payload, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return payload, nil
	case reportapi.FormatCSV:
		buf := &bytes.Buffer{}
		if err := writeCSV(buf, columns, result.Rows); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case reportapi.FormatHTML:
		buf := &bytes.Buffer{}
		err := htmlReport.Execute(buf, map[string]any{
			"Report":      descriptor,
			"Columns":     columns,
			"Rows":        result.Rows,
			"GeneratedAt": result.GeneratedAt.UTC().Format(domain.TimestampLayout),
		})
		if err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		return buf.Bytes(), nil
	case reportapi.FormatXLSX:
		return renderXLSX(columns, result.Rows)
	default:
		return nil, fmt.Errorf("unsupported export format %s", format)
	}
}

func renderXLSX(columns []reportapi.Column, rows []reportapi.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	header := make([]any, len(columns))
	for i, column := range columns {
		header[i] = column.Name
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("xlsx header: %w", err)
	}
	for n, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(columns))
		for i, column := range columns {
			values[i] = row[column.Name]
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", n+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCSV(w io.Writer, columns []reportapi.Column, rows []reportapi.Row) error {
	writer := csv.NewWriter(w)
	headers := make([]string, len(columns))
	for i, column := range columns {
		headers[i] = column.Name
	}
	if err := writer.Write(headers); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, column := range columns {
			record[i] = reportapi.FormatValue(row[column.Name])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func columnsOf(descriptor reportapi.TemplateDescriptor, result reportapi.RunResult) []reportapi.Column {
	if len(result.Schema) > 0 {
		return result.Schema
	}
	return descriptor.Columns
}

func artifactKey(exportID, report string, format reportapi.Format) string {
	return path.Join("exports", exportID, report+"."+string(format))
}

func artifactFilename(key string) string { return path.Base(key) }
