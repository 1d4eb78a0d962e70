package bs1200

import "sort"

// Registry is the fixed set of units a session may address.
type Registry struct {
	units map[UnitID]struct{}
	list  []UnitID
}

// NewRegistry validates ids against 1..15. Duplicates are folded.
func NewRegistry(ids ...int) (*Registry, error) {
	r := &Registry{units: make(map[UnitID]struct{}, len(ids))}
	for _, id := range ids {
		if id < MinUnitID || id > MaxUnitID {
			return nil, &UnitIDError{ID: id}
		}
		u := UnitID(id)
		if _, dup := r.units[u]; dup {
			continue
		}
		r.units[u] = struct{}{}
		r.list = append(r.list, u)
	}
	sort.Slice(r.list, func(i, j int) bool { return r.list[i] < r.list[j] })
	return r, nil
}

func (r *Registry) Validate(id UnitID) bool {
	_, ok := r.units[id]
	return ok
}

// Check is Validate returning the error operations fail with.
func (r *Registry) Check(id UnitID) error {
	if r.Validate(id) {
		return nil
	}
	return &UnitIDError{ID: int(id)}
}

// Units returns the registered ids in ascending order.
func (r *Registry) Units() []UnitID {
	out := make([]UnitID, len(r.list))
	copy(out, r.list)
	return out
}
