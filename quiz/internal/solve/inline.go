package solve

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// InlineExample handles pages that spell out the submission, e.g.
//
//	Post your answer to https://host/submit with this JSON payload:
//	{"email": "...", "answer": 42}
//
// The URL and the numeric answer literal are taken verbatim.
type InlineExample struct{}

func (InlineExample) Name() string { return "inline_example" }

var (
	// A URL-shaped token, then any closing tags or wrapping punctuation,
	// then the phrase. Tasks may arrive as markup (#result inner HTML).
	payloadPhrase = regexp.MustCompile(`(?i)(https?://[^\s"'<>\x60()\[\]]+|/[^\s"'<>\x60()\[\]]*)(?:\s*</[a-z][^>]*>|[\s"'<>\x60)\]:,;])*with\s+this\s+json\s+payload`)
	answerLiteral = regexp.MustCompile(`"answer"\s*:\s*(-?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?)`)
)

func (InlineExample) Match(_ context.Context, in Input) (Payload, bool) {
	loc := payloadPhrase.FindStringSubmatchIndex(in.Task)
	if loc == nil {
		return nil, false
	}
	target := trimURLToken(in.Task[loc[2]:loc[3]])
	if target == "" {
		return nil, false
	}

	example := exampleObject(in.Task[loc[1]:])
	if example == "" {
		return nil, false
	}
	answer, ok := answerFromExample(example)
	if !ok {
		return nil, false
	}

	return Payload{"url": resolveAgainst(in.PageURL, target), "answer": answer}, true
}

// exampleObject returns the first balanced {...} after the phrase, or the
// unterminated tail when the braces never close.
func exampleObject(rest string) string {
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	for i := start; i < len(rest); i++ {
		c := rest[i]
		switch {
		case inString && c == '\\':
			i++
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return rest[start : i+1]
			}
		}
	}
	return rest[start:]
}

// answerFromExample reads the numeric answer field. Examples copied from
// prose are often not valid JSON (single quotes, trailing commas, comments),
// so they are repaired first; the literal is kept as written.
func answerFromExample(example string) (json.Number, bool) {
	if repaired, err := jsonrepair.JSONRepair(example); err == nil {
		dec := json.NewDecoder(strings.NewReader(repaired))
		dec.UseNumber()
		var obj map[string]any
		if dec.Decode(&obj) == nil {
			if n, ok := obj["answer"].(json.Number); ok {
				return n, true
			}
		}
	}
	if m := answerLiteral.FindStringSubmatch(example); m != nil {
		return json.Number(m[1]), true
	}
	return "", false
}

// trimURLToken strips quoting and punctuation prose wraps around a URL.
func trimURLToken(tok string) string {
	return strings.Trim(tok, "\"'`<>()[],;:")
}

func resolveAgainst(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return ref
	}
	u, err := b.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
