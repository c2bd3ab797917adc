package transaction

import "github.com/liamcoop/docrules/rules"

// Reconcile returns a pending document for every decision whose slug has no document
// yet, in decision order. Existing documents are never changed or removed, so running
// it again with the same decisions returns nothing.
func Reconcile(existing []Document, decisions []rules.DocumentDecision) []Document {
	seen := make(map[string]bool, len(existing))
	for _, d := range existing {
		seen[d.Slug] = true
	}

	added := []Document{}
	for _, decision := range decisions {
		if seen[decision.Slug] {
			continue
		}
		seen[decision.Slug] = true
		added = append(added, Document{
			Slug:           decision.Slug,
			Name:           decision.Name,
			IncludedReason: decision.IncludedReason,
			Status:         DocumentPending,
		})
	}
	return added
}
