package docpipe

// Format identifies a document type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
)

// Document is the result of parsing a fetched payload. Exactly one of Rows,
// Value or Text is populated, depending on Format.
type Document struct {
	Format Format              `json:"format"`
	Rows   []map[string]string `json:"rows,omitempty"`  // csv: one map per data row, keyed by header
	Value  any                 `json:"value,omitempty"` // json: decoded document
	Text   string              `json:"text,omitempty"`  // pdf: concatenated page text
}
