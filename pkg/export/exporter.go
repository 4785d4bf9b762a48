package export

import (
	"fmt"
	"strings"
)

// Format names a supported export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// ParseFormat normalises a user supplied format. Empty input means CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Renderer dispatches a dataset to the exporter for the requested format.
type Renderer struct {
	csv  *CSVExporter
	pdf  *PDFExporter
	xlsx *XLSXExporter
}

// NewRenderer wires every exporter.
func NewRenderer() *Renderer {
	return &Renderer{
		csv:  NewCSVExporter(),
		pdf:  NewPDFExporter(),
		xlsx: NewXLSXExporter(),
	}
}

// Render encodes data in the given format. title is used by the PDF and XLSX outputs.
func (r *Renderer) Render(format Format, data Dataset, title string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return r.csv.Render(data)
	case FormatPDF:
		return r.pdf.Render(data, title)
	case FormatXLSX:
		return r.xlsx.Render(data, title)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
