package topology

import "testing"

func svc(id string, appIDs ...string) Service {
	return Service{ID: id, DisplayName: id, ApplicationIDs: appIDs, IsManual: true}
}

func TestInferSelectionAction_EmptySelection(t *testing.T) {
	action, app := InferSelectionAction(nil, nil)
	if action != ActionNone || app != nil {
		t.Fatalf("expected none, got %s (%v)", action, app)
	}
}

func TestInferSelectionAction_ExactMatch(t *testing.T) {
	apps := []Application{
		{ID: "app-1", Name: "Payments", ServiceIDs: []string{"a", "b"}},
	}
	selected := []Service{svc("a", "app-1"), svc("b", "app-1")}

	action, app := InferSelectionAction(selected, apps)
	if action != ActionEditApplication {
		t.Fatalf("expected edit_application, got %s", action)
	}
	if app == nil || app.ID != "app-1" {
		t.Fatalf("expected app-1, got %v", app)
	}
}

func TestInferSelectionAction_SubsetOfApplication(t *testing.T) {
	// Selecting 1 of 2 members must offer create, not edit.
	apps := []Application{
		{ID: "app-1", Name: "Payments", ServiceIDs: []string{"a", "b"}},
	}
	selected := []Service{svc("a", "app-1")}

	action, _ := InferSelectionAction(selected, apps)
	if action != ActionCreateApplication {
		t.Fatalf("expected create_application for subset, got %s", action)
	}
}

func TestInferSelectionAction_NoCommonApplication(t *testing.T) {
	apps := []Application{
		{ID: "app-1", ServiceIDs: []string{"a"}},
		{ID: "app-2", ServiceIDs: []string{"b"}},
	}
	selected := []Service{svc("a", "app-1"), svc("b", "app-2")}

	action, _ := InferSelectionAction(selected, apps)
	if action != ActionCreateApplication {
		t.Fatalf("expected create_application, got %s", action)
	}
}

func TestInferSelectionAction_MultipleCommonApplications(t *testing.T) {
	// Two apps share exactly the same members: ambiguous, offer create.
	apps := []Application{
		{ID: "app-1", ServiceIDs: []string{"a", "b"}},
		{ID: "app-2", ServiceIDs: []string{"a", "b"}},
	}
	selected := []Service{svc("a", "app-1", "app-2"), svc("b", "app-1", "app-2")}

	action, _ := InferSelectionAction(selected, apps)
	if action != ActionCreateApplication {
		t.Fatalf("expected create_application for ambiguous selection, got %s", action)
	}
}

func TestInferSelectionAction_UnknownApplicationID(t *testing.T) {
	selected := []Service{svc("a", "ghost"), svc("b", "ghost")}

	action, _ := InferSelectionAction(selected, nil)
	if action != ActionCreateApplication {
		t.Fatalf("expected create_application, got %s", action)
	}
}

func TestEdgeEditable(t *testing.T) {
	manual := svc("m1")
	discovered := Service{ID: "d1", IsManual: false}
	g := Graph{Services: []Service{manual, discovered, svc("m2")}}
	idx := g.ServiceIndex()

	cases := []struct {
		name string
		dep  Dependency
		want bool
	}{
		{"manual_to_manual", Dependency{SourceID: "m1", TargetID: "m2"}, true},
		{"manual_to_discovered", Dependency{SourceID: "m1", TargetID: "d1"}, false},
		{"discovered_to_manual", Dependency{SourceID: "d1", TargetID: "m1"}, false},
		{"missing_endpoint", Dependency{SourceID: "m1", TargetID: "nope"}, false},
	}
	for _, tc := range cases {
		if got := EdgeEditable(idx, tc.dep); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
