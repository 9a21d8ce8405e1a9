// Package docpipe parses fetched payloads into rows, documents or text.
//
// Supported formats:
//   - .csv   — delimited rows with a header line (encoding/csv)
//   - .json  — any JSON document
//   - .pdf   — page text via pdfcpu content-stream extraction
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	format, err := pipe.Detect("http://host/data.csv")
//	doc, err := pipe.Extract(ctx, format, body)
package docpipe

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
)

// Pipeline is the document extraction engine.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Detect returns the document format based on the extension of a file path
// or of a URL's path component. Query strings and fragments are ignored.
func (p *Pipeline) Detect(location string) (Format, error) {
	name := location
	if u, err := url.Parse(location); err == nil && u.Path != "" {
		name = u.Path
	}
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("docpipe: unsupported format: %q", ext)
	}
}

// Extract parses data according to format.
func (p *Pipeline) Extract(ctx context.Context, format Format, data []byte) (*Document, error) {
	if int64(len(data)) > p.cfg.MaxBytes {
		return nil, fmt.Errorf("docpipe: payload too large: %d bytes (max %d)", len(data), p.cfg.MaxBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Debug("docpipe: extracting", "format", format, "bytes", len(data))

	doc := &Document{Format: format}
	var err error
	switch format {
	case FormatCSV:
		doc.Rows, err = ParseCSV(data)
	case FormatJSON:
		doc.Value, err = ParseJSON(data)
	case FormatPDF:
		doc.Text, err = ExtractPDFText(data)
	default:
		return nil, fmt.Errorf("docpipe: no parser for format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("docpipe: extract %s: %w", format, err)
	}
	return doc, nil
}

// SupportedFormats returns all supported format extensions.
func SupportedFormats() []string {
	return []string{string(FormatCSV), string(FormatJSON), string(FormatPDF)}
}
