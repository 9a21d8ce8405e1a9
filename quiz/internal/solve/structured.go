package solve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hazyhaar/quizagent/docpipe"
)

// Structured handles tasks that are a bare JSON object naming a data file:
// {"url": "https://host/data.csv", "email": "..."}. The file is fetched and
// the sum of its values becomes the answer.
type Structured struct {
	Fetcher Fetcher
	Docs    *docpipe.Pipeline
	Logger  *slog.Logger
}

func (s *Structured) Name() string { return "structured" }

func (s *Structured) Match(ctx context.Context, in Input) (Payload, bool) {
	inst, ok := parseInstruction(in.Task)
	if !ok {
		return nil, false
	}
	target, _ := inst["url"].(string)

	format, err := s.Docs.Detect(target)
	if err != nil {
		s.logger().Debug("solve: structured target not summable", "url", target, "error", err)
		return nil, false
	}

	sum, err := s.sum(ctx, target, format)
	if err != nil {
		s.logger().Warn("solve: structured rule skipped", "error", err)
		return nil, false
	}

	p := Payload{"url": target, "answer": sum}
	if email, ok := inst["email"].(string); ok && email != "" {
		p["email"] = email
	}
	return p, true
}

func (s *Structured) sum(ctx context.Context, target string, format docpipe.Format) (float64, error) {
	res, err := s.Fetcher.Fetch(ctx, target)
	if err != nil {
		return 0, &RemoteFetchError{URL: target, Cause: err}
	}
	doc, err := s.Docs.Extract(ctx, format, res.Body)
	if err != nil {
		return 0, &RemoteFetchError{URL: target, Cause: err}
	}

	switch format {
	case docpipe.FormatCSV:
		return SumRows(doc.Rows), nil
	case docpipe.FormatJSON:
		items, ok := doc.Value.([]any)
		if !ok {
			return 0, &RemoteFetchError{URL: target, Cause: fmt.Errorf("json document is %T, want array", doc.Value)}
		}
		return SumObjects(items), nil
	case docpipe.FormatPDF:
		return SumNumbers(doc.Text), nil
	}
	return 0, &RemoteFetchError{URL: target, Cause: fmt.Errorf("no summing rule for %s", format)}
}

func (s *Structured) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// parseInstruction accepts exactly one JSON object with a non-empty string
// url and no answer field.
func parseInstruction(task string) (map[string]any, bool) {
	task = strings.TrimSpace(task)
	if !strings.HasPrefix(task, "{") {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(task))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	if _, has := obj["answer"]; has {
		return nil, false
	}
	if u, ok := obj["url"].(string); !ok || strings.TrimSpace(u) == "" {
		return nil, false
	}
	return obj, true
}

// SumRows adds each row's value column. Missing or non-numeric cells count
// as zero.
func SumRows(rows []map[string]string) float64 {
	var total float64
	for _, row := range rows {
		for k, v := range row {
			if strings.EqualFold(strings.TrimSpace(k), "value") {
				total += toFloat(v)
				break
			}
		}
	}
	return total
}

// SumObjects adds the value field of every object in items. Other element
// kinds and non-numeric values count as zero.
func SumObjects(items []any) float64 {
	var total float64
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		total += toFloat(obj["value"])
	}
	return total
}

var signedDecimal = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// SumNumbers adds every signed decimal literal found in text.
func SumNumbers(text string) float64 {
	var total float64
	for _, m := range signedDecimal.FindAllString(text, -1) {
		total += toFloat(m)
	}
	return total
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	return 0
}
