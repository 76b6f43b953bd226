package assignment

// Delta is the change needed to turn an existing assignee set into a desired one.
type Delta struct {
	ToAdd    []string `json:"to_add"`
	ToRemove []string `json:"to_remove"`
}

func (d Delta) IsEmpty() bool { return len(d.ToAdd) == 0 && len(d.ToRemove) == 0 }

// Diff computes desired minus existing and existing minus desired.
func Diff(existing, desired IDSet) Delta {
	return Delta{
		ToAdd:    desired.minus(existing),
		ToRemove: existing.minus(desired),
	}
}

// Apply returns existing with the delta applied. existing is not modified.
func Apply(existing IDSet, d Delta) IDSet {
	out := existing.Clone()
	for _, id := range d.ToRemove {
		out.Remove(id)
	}
	for _, id := range d.ToAdd {
		out.Add(id)
	}
	return out
}

type EntityDelta struct {
	ClientID string `json:"client_id"`
	Delta
}

// Plan diffs every client named in desired against existing. Clients absent
// from desired are left alone; clients whose delta is empty are skipped.
func Plan(existing, desired StateMap) []EntityDelta {
	var out []EntityDelta
	for _, clientID := range desired.ClientIDs() {
		d := Diff(existing.Get(clientID), desired[clientID])
		if d.IsEmpty() {
			continue
		}
		out = append(out, EntityDelta{ClientID: clientID, Delta: d})
	}
	return out
}

// Totals counts the insertions and deletions of a plan.
func Totals(plan []EntityDelta) (adds, removes int) {
	for _, e := range plan {
		adds += len(e.ToAdd)
		removes += len(e.ToRemove)
	}
	return adds, removes
}
