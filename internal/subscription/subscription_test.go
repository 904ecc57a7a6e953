package subscription

import (
	"reflect"
	"testing"
)

func TestSubscribeAllReceivesNonInternalCategory(t *testing.T) {
	r := New()
	r.SubscribeAll("s1")

	got := r.Recipients("anything")
	if !reflect.DeepEqual(got, []Session{"s1"}) {
		t.Errorf("Recipients() = %v, want [s1]", got)
	}
}

func TestSubscribeSpecificCategory(t *testing.T) {
	r := New()
	r.Subscribe("s1", []string{"app"})

	if got := r.Recipients("app"); len(got) != 1 || got[0] != "s1" {
		t.Errorf("Recipients(app) = %v, want [s1]", got)
	}
	if got := r.Recipients("other"); len(got) != 0 {
		t.Errorf("Recipients(other) = %v, want empty", got)
	}
}

func TestRecipientsDedupesAllAndSpecific(t *testing.T) {
	r := New()
	r.SubscribeAll("s1")
	r.Subscribe("s1", []string{"app"})

	got := r.Recipients("app")
	if len(got) != 1 {
		t.Errorf("Recipients(app) = %v, want exactly one entry for s1", got)
	}
}

func TestUnsubscribeRemovesFromAllLists(t *testing.T) {
	r := New()
	r.SubscribeAll("s1")
	r.Subscribe("s1", []string{"app", "system"})
	r.Subscribe("s2", []string{"app"})

	r.Unsubscribe("s1")

	if got := r.Recipients("app"); len(got) != 1 || got[0] != "s2" {
		t.Errorf("Recipients(app) after unsubscribe = %v, want [s2]", got)
	}
	if got := r.Recipients("system"); len(got) != 0 {
		t.Errorf("Recipients(system) after unsubscribe = %v, want empty", got)
	}
}

func TestSubscribeAllIsIdempotent(t *testing.T) {
	r := New()
	r.SubscribeAll("s1")
	r.SubscribeAll("s1")

	if len(r.all) != 1 {
		t.Errorf("all list len = %d, want 1 after duplicate SubscribeAll", len(r.all))
	}
}

func TestUnsubscribeUnknownSessionIsNoop(t *testing.T) {
	r := New()
	r.Unsubscribe("ghost")
}

// A plain SUBSCRIBE (SubscribeAll) must not receive internal
// "."-prefixed lifecycle categories.
func TestSubscribeAllExcludesInternalCategories(t *testing.T) {
	r := New()
	r.SubscribeAll("s1")

	if got := r.Recipients(".notification"); len(got) != 0 {
		t.Errorf("Recipients(.notification) = %v, want empty for an all-subscriber", got)
	}
	if got := r.Recipients("app"); len(got) != 1 || got[0] != "s1" {
		t.Errorf("Recipients(app) = %v, want [s1]", got)
	}
}

func TestExplicitSubscribeToInternalCategoryStillWorks(t *testing.T) {
	r := New()
	r.Subscribe("s1", []string{".notification"})

	if got := r.Recipients(".notification"); len(got) != 1 || got[0] != "s1" {
		t.Errorf("Recipients(.notification) = %v, want [s1] for an explicit subscriber", got)
	}
}
