// Package resolve locates the endpoint a page's answer must be posted to.
package resolve

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/hazyhaar/quizagent/quiz/internal/snapshot"
)

// Source names where a submit URL was found.
type Source string

const (
	SourceNone    Source = ""
	SourceForm    Source = "form"
	SourceLink    Source = "link"
	SourcePreJSON Source = "pre_submit"
	SourcePreURL  Source = "pre_url"
)

// Resolve returns the submit URL and where it came from. An empty URL means
// the page offers no target.
//
// Order: first form action, first submit-like link, the "submit" field of a
// JSON preformatted block, that block's "url" field when it looks
// submit-related.
func Resolve(snap *snapshot.Snapshot) (string, Source) {
	if snap == nil {
		return "", SourceNone
	}

	if len(snap.Forms) > 0 && snap.Forms[0].Action != "" {
		return snap.Forms[0].Action, SourceForm
	}

	for _, link := range snap.Links {
		if LooksLikeSubmit(link) {
			return link, SourceLink
		}
	}

	obj := preJSON(snap.PreText())
	if obj == nil {
		return "", SourceNone
	}
	if s, ok := obj["submit"].(string); ok && strings.TrimSpace(s) != "" {
		return absolute(snap.URL, s), SourcePreJSON
	}
	if s, ok := obj["url"].(string); ok && LooksLikeSubmit(s) {
		return absolute(snap.URL, s), SourcePreURL
	}
	return "", SourceNone
}

// LooksLikeSubmit reports whether a URL names a submit endpoint. "/submit"
// and "/api/submit" are both covered by the case-insensitive substring test.
func LooksLikeSubmit(u string) bool {
	return strings.Contains(strings.ToLower(u), "submit")
}

// preJSON parses the preformatted block as a JSON object, repairing the
// sloppy JSON hand-written pages tend to carry.
func preJSON(pre string) map[string]any {
	pre = strings.TrimSpace(pre)
	if !strings.HasPrefix(pre, "{") {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(pre), &obj); err == nil {
		return obj
	}
	repaired, err := jsonrepair.JSONRepair(pre)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil
	}
	return obj
}

func absolute(base, ref string) string {
	ref = strings.TrimSpace(ref)
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
