package plugin

import (
	"context"
	"testing"

	"github.com/nugget/eventd-go/internal/action"
	"github.com/nugget/eventd-go/internal/event"
)

type basePlugin struct{ id string }

func (b basePlugin) ID() string { return b.id }

type parserPlugin struct{ basePlugin }

func (parserPlugin) ParseAction(spec map[string]string) (action.PluginAction, error) { return nil, nil }

type freerOnlyPlugin struct{ basePlugin }

func (freerOnlyPlugin) FreeAction(pa action.PluginAction) {}

type dispatchPlugin struct {
	basePlugin
	calls int
}

func (d *dispatchPlugin) Dispatch(ctx context.Context, ev *event.Event) { d.calls++ }

func TestValidateRejectsFreerWithoutParser(t *testing.T) {
	if err := Validate(freerOnlyPlugin{basePlugin{"bad"}}); err == nil {
		t.Error("Validate() error = nil, want error for ActionFreer without ActionParser")
	}
}

func TestValidateAcceptsParser(t *testing.T) {
	if err := Validate(parserPlugin{basePlugin{"good"}}); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestRegistryDispatchersInOrder(t *testing.T) {
	r := NewRegistry()
	d1 := &dispatchPlugin{basePlugin: basePlugin{"one"}}
	d2 := &dispatchPlugin{basePlugin: basePlugin{"two"}}
	if err := r.Add(d1); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(d2); err != nil {
		t.Fatal(err)
	}

	ds := r.Dispatchers()
	if len(ds) != 2 {
		t.Fatalf("Dispatchers() len = %d, want 2", len(ds))
	}
	ds[0].Dispatch(context.Background(), nil)
	if d1.calls != 1 {
		t.Errorf("first dispatcher not called")
	}
}

func TestFilterBlacklistPrecedence(t *testing.T) {
	ids := []string{"a", "b", "c"}
	got := Filter(ids, []string{"a", "b"}, []string{"b"})
	if len(got) != 1 || got[0] != "a" {
		t.Errorf("Filter() = %v, want [a]", got)
	}
}

func TestFilterNoRestriction(t *testing.T) {
	ids := []string{"a", "b"}
	got := Filter(ids, nil, nil)
	if len(got) != 2 {
		t.Errorf("Filter() = %v, want both passed through", got)
	}
}
