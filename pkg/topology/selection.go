package topology

// SelectionAction tells the caller which application flow to offer for the
// current multi-select of services.
type SelectionAction string

const (
	ActionNone              SelectionAction = "none"
	ActionCreateApplication SelectionAction = "create_application"
	ActionEditApplication   SelectionAction = "edit_application"
)

// InferSelectionAction decides between the create-application and
// edit-application flows for a set of selected services.
//
// Edit is offered only on an exact match: every selected service belongs to
// exactly one common application, and that application's full member list is
// the same size as the selection. Subset or superset selections fall back to
// create, so editing never silently drops members the user did not select.
func InferSelectionAction(selected []Service, apps []Application) (SelectionAction, *Application) {
	if len(selected) == 0 {
		return ActionNone, nil
	}

	// Intersect application membership across the selection.
	common := make(map[string]int)
	for _, svc := range selected {
		seen := make(map[string]bool, len(svc.ApplicationIDs))
		for _, appID := range svc.ApplicationIDs {
			if seen[appID] {
				continue
			}
			seen[appID] = true
			common[appID]++
		}
	}

	var shared []string
	for appID, count := range common {
		if count == len(selected) {
			shared = append(shared, appID)
		}
	}
	if len(shared) != 1 {
		return ActionCreateApplication, nil
	}

	for i := range apps {
		if apps[i].ID != shared[0] {
			continue
		}
		if len(apps[i].ServiceIDs) == len(selected) {
			app := apps[i]
			return ActionEditApplication, &app
		}
		return ActionCreateApplication, nil
	}

	// Selection references an application the caller no longer knows about.
	return ActionCreateApplication, nil
}
