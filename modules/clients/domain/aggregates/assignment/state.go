package assignment

import "slices"

// StateMap maps a client id to the set of users assigned to it.
type StateMap map[string]IDSet

// FromAssignments groups persisted rows by client. Every id in clientIDs gets
// an entry, empty when nothing is assigned. Stored user ids are kept verbatim
// so a plan can delete them with an exact match.
func FromAssignments(clientIDs []string, rows []Assignment) StateMap {
	m := make(StateMap, len(clientIDs))
	for _, id := range clientIDs {
		m[id] = IDSet{}
	}
	for _, row := range rows {
		set, ok := m[row.ClientID()]
		if !ok {
			set = IDSet{}
			m[row.ClientID()] = set
		}
		if row.UserID() != "" {
			set[row.UserID()] = struct{}{}
		}
	}
	return m
}

// FromLists converts a JSON-friendly representation into a StateMap.
func FromLists(in map[string][]string) StateMap {
	m := make(StateMap, len(in))
	for clientID, users := range in {
		m[clientID] = NewIDSet(users...)
	}
	return m
}

func (m StateMap) Get(clientID string) IDSet {
	if set, ok := m[clientID]; ok {
		return set
	}
	return IDSet{}
}

func (m StateMap) Clone() StateMap {
	out := make(StateMap, len(m))
	for clientID, set := range m {
		out[clientID] = set.Clone()
	}
	return out
}

// ClientIDs returns the keys in ascending order.
func (m StateMap) ClientIDs() []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Lists is the JSON-friendly form with sorted user ids.
func (m StateMap) Lists() map[string][]string {
	out := make(map[string][]string, len(m))
	for clientID, set := range m {
		out[clientID] = set.Sorted()
	}
	return out
}
