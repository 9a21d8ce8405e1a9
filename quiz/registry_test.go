package quiz

import (
	"fmt"
	"testing"
)

func TestRegistryEviction(t *testing.T) {
	r := NewRegistry(2)
	r.put(Session{ID: "live"})
	for i := 0; i < 3; i++ {
		r.put(Session{ID: fmt.Sprintf("done%d", i), Reason: ReasonCompleted})
	}

	if _, ok := r.Get("live"); !ok {
		t.Error("live session evicted")
	}
	if _, ok := r.Get("done0"); ok {
		t.Error("oldest finished session kept")
	}
	list := r.List()
	if len(list) != 2 || list[0].ID != "done2" {
		t.Errorf("list = %+v", list)
	}

	r.put(Session{ID: "live", Reason: ReasonSubmitFailed})
	if r.Active() != 0 {
		t.Errorf("active = %d", r.Active())
	}
	if len(r.List()) != 2 {
		t.Errorf("len = %d after live session finished", len(r.List()))
	}
}

func TestRegistryDiagnostic(t *testing.T) {
	r := NewRegistry(0)
	r.put(Session{ID: "a"})
	r.attachDiagnostic("a", &Diagnostic{Why: "x"})
	r.attachDiagnostic("missing", &Diagnostic{})
	info, _ := r.Get("a")
	if info.Diagnostic == nil || info.Diagnostic.Why != "x" {
		t.Errorf("diagnostic = %+v", info.Diagnostic)
	}
}
