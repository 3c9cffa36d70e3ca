package structure

import "sort"

// Status classifies an entity across a before/after pair.
type Status string

const (
	StatusAdded     Status = "added"
	StatusRemoved   Status = "removed"
	StatusModified  Status = "modified"
	StatusUnchanged Status = "unchanged"
)

// Change is the status of one entity identity.
type Change struct {
	Key    string `json:"key"`
	Status Status `json:"status"`
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
	File   string `json:"file"`
}

// ChangeSet is the result of Diff, sorted by key.
type ChangeSet struct {
	Changes []Change `json:"changes"`
}

// Diff matches entities by qualified name. An entity only in after is
// added, only in before is removed; one in both is modified when its
// signature, ordered members, ordered parameters, bases or body fingerprint
// differ. Identity is name-based: a rename shows as one removal plus one
// addition, and moving declarations around never produces changes.
func Diff(before, after []Entity) ChangeSet {
	old := make(map[string]*Entity, len(before))
	for i := range before {
		if _, dup := old[before[i].QualifiedName]; !dup {
			old[before[i].QualifiedName] = &before[i]
		}
	}
	cur := make(map[string]*Entity, len(after))
	for i := range after {
		if _, dup := cur[after[i].QualifiedName]; !dup {
			cur[after[i].QualifiedName] = &after[i]
		}
	}

	var cs ChangeSet
	for key, a := range cur {
		b, ok := old[key]
		switch {
		case !ok:
			cs.Changes = append(cs.Changes, changeOf(a, StatusAdded))
		case !structurallyEqual(b, a):
			cs.Changes = append(cs.Changes, changeOf(a, StatusModified))
		default:
			cs.Changes = append(cs.Changes, changeOf(a, StatusUnchanged))
		}
	}
	for key, b := range old {
		if _, ok := cur[key]; !ok {
			cs.Changes = append(cs.Changes, changeOf(b, StatusRemoved))
		}
	}
	sort.Slice(cs.Changes, func(i, j int) bool { return cs.Changes[i].Key < cs.Changes[j].Key })
	return cs
}

// DiffModels diffs the entities of two sets of file models.
func DiffModels(before, after []*Model) ChangeSet {
	return Diff(flatten(before), flatten(after))
}

func flatten(models []*Model) []Entity {
	var out []Entity
	for _, m := range models {
		if m != nil {
			out = append(out, m.Entities...)
		}
	}
	return out
}

func changeOf(e *Entity, s Status) Change {
	return Change{Key: e.QualifiedName, Status: s, Kind: e.Kind, Name: e.Name, File: e.Range.File}
}

func structurallyEqual(a, b *Entity) bool {
	if a.Kind != b.Kind || a.RawSignature != b.RawSignature || a.BodyHash != b.BodyHash {
		return false
	}
	if len(a.Members) != len(b.Members) || len(a.Params) != len(b.Params) || len(a.Bases) != len(b.Bases) {
		return false
	}
	for i := range a.Members {
		x, y := a.Members[i], b.Members[i]
		if x.Kind != y.Kind || x.Name != y.Name || x.Type != y.Type || x.Signature != y.Signature {
			return false
		}
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Bases {
		if a.Bases[i] != b.Bases[i] {
			return false
		}
	}
	return true
}

// Status returns the status recorded for key.
func (cs ChangeSet) Status(key string) (Status, bool) {
	i := sort.Search(len(cs.Changes), func(i int) bool { return cs.Changes[i].Key >= key })
	if i < len(cs.Changes) && cs.Changes[i].Key == key {
		return cs.Changes[i].Status, true
	}
	return "", false
}

// Filter returns the changes with status s.
func (cs ChangeSet) Filter(s Status) []Change {
	var out []Change
	for _, c := range cs.Changes {
		if c.Status == s {
			out = append(out, c)
		}
	}
	return out
}

// Changed returns every change that is not unchanged.
func (cs ChangeSet) Changed() []Change {
	var out []Change
	for _, c := range cs.Changes {
		if c.Status != StatusUnchanged {
			out = append(out, c)
		}
	}
	return out
}

// Subset returns a ChangeSet restricted to the given keys.
func (cs ChangeSet) Subset(keys []string) ChangeSet {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var out ChangeSet
	for _, c := range cs.Changes {
		if want[c.Key] {
			out.Changes = append(out.Changes, c)
		}
	}
	return out
}

// Counts tallies changes by status.
func (cs ChangeSet) Counts() map[Status]int {
	out := make(map[Status]int, 4)
	for _, c := range cs.Changes {
		out[c.Status]++
	}
	return out
}

// Empty reports whether the set records no changes at all.
func (cs ChangeSet) Empty() bool {
	return len(cs.Changes) == 0
}
