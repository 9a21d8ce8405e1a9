package resolve

import (
	"testing"

	"github.com/hazyhaar/quizagent/quiz/internal/snapshot"
)

func str(s string) *string { return &s }

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		snap    *snapshot.Snapshot
		wantURL string
		wantSrc Source
	}{
		{
			name: "form wins over link",
			snap: &snapshot.Snapshot{
				Forms: []snapshot.Form{{Action: "https://h/answer", Method: "post"}, {Action: "https://h/other"}},
				Links: []string{"https://h/submit"},
			},
			wantURL: "https://h/answer",
			wantSrc: SourceForm,
		},
		{
			name:    "first submit-like link",
			snap:    &snapshot.Snapshot{Links: []string{"https://h/home", "https://h/API/Submit", "https://h/submit"}},
			wantURL: "https://h/API/Submit",
			wantSrc: SourceLink,
		},
		{
			name:    "pre submit field",
			snap:    &snapshot.Snapshot{URL: "https://h/q1", Links: []string{"https://h/home"}, Pre: str(`{"submit": "/api/submit", "url": "https://h/x"}`)},
			wantURL: "https://h/api/submit",
			wantSrc: SourcePreJSON,
		},
		{
			name:    "pre url field when submit-like",
			snap:    &snapshot.Snapshot{Pre: str(`{"url": "https://h/submit/q2"}`)},
			wantURL: "https://h/submit/q2",
			wantSrc: SourcePreURL,
		},
		{
			name:    "pre url field not submit-like",
			snap:    &snapshot.Snapshot{Pre: str(`{"url": "https://h/data.csv"}`)},
			wantURL: "",
			wantSrc: SourceNone,
		},
		{
			name:    "repaired pre json",
			snap:    &snapshot.Snapshot{Pre: str(`{submit: 'https://h/submit',}`)},
			wantURL: "https://h/submit",
			wantSrc: SourcePreJSON,
		},
		{
			name:    "pre not json",
			snap:    &snapshot.Snapshot{Pre: str("Sum the column and submit it")},
			wantURL: "",
			wantSrc: SourceNone,
		},
		{
			name:    "nothing",
			snap:    &snapshot.Snapshot{},
			wantURL: "",
			wantSrc: SourceNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, src := Resolve(tt.snap)
			if u != tt.wantURL || src != tt.wantSrc {
				t.Errorf("Resolve = (%q, %q), want (%q, %q)", u, src, tt.wantURL, tt.wantSrc)
			}
		})
	}
}

func TestResolveNil(t *testing.T) {
	if u, src := Resolve(nil); u != "" || src != SourceNone {
		t.Errorf("Resolve(nil) = (%q, %q)", u, src)
	}
}

func TestLooksLikeSubmit(t *testing.T) {
	for u, want := range map[string]bool{
		"https://h/submit":     true,
		"https://h/api/submit": true,
		"https://h/SUBMITTED":  true,
		"https://h/answer":     false,
		"":                     false,
	} {
		if got := LooksLikeSubmit(u); got != want {
			t.Errorf("LooksLikeSubmit(%q) = %v, want %v", u, got, want)
		}
	}
}
