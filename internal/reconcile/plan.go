package reconcile

import "sort"

// Plan is the set difference between what a target holds for a scope and
// the freshly computed rows.
type Plan[R Row] struct {
	Scope   string
	Upserts []R
	Deletes []string
	// Ordered is the full fresh set in canonical order.
	Ordered []R
	// Reorder is set when the stored order differs from the canonical one.
	Reorder bool
}

func (p Plan[R]) Empty() bool {
	return len(p.Upserts) == 0 && len(p.Deletes) == 0 && !p.Reorder
}

// Diff compares by full value, keyed on NaturalKey. Existing rows are taken
// in stored order. When fresh holds the same key twice the last one wins.
func Diff[R Row](scope string, existing, fresh []R, less func(a, b R) bool) Plan[R] {
	plan := Plan[R]{Scope: scope}

	byKey := make(map[string]R, len(fresh))
	for _, row := range fresh {
		byKey[row.NaturalKey()] = row
	}
	plan.Ordered = make([]R, 0, len(byKey))
	for _, row := range byKey {
		plan.Ordered = append(plan.Ordered, row)
	}
	sort.SliceStable(plan.Ordered, func(i, j int) bool {
		if less != nil {
			if less(plan.Ordered[i], plan.Ordered[j]) {
				return true
			}
			if less(plan.Ordered[j], plan.Ordered[i]) {
				return false
			}
		}
		return plan.Ordered[i].NaturalKey() < plan.Ordered[j].NaturalKey()
	})

	old := make(map[string]R, len(existing))
	for _, row := range existing {
		old[row.NaturalKey()] = row
	}
	for _, row := range plan.Ordered {
		if prev, ok := old[row.NaturalKey()]; !ok || prev != row {
			plan.Upserts = append(plan.Upserts, row)
		}
	}
	for key := range old {
		if _, ok := byKey[key]; !ok {
			plan.Deletes = append(plan.Deletes, key)
		}
	}
	sort.Strings(plan.Deletes)

	if len(plan.Upserts) == 0 && len(plan.Deletes) == 0 {
		plan.Reorder = len(existing) != len(plan.Ordered)
		for i := 0; !plan.Reorder && i < len(existing); i++ {
			plan.Reorder = existing[i].NaturalKey() != plan.Ordered[i].NaturalKey()
		}
	}
	return plan
}
