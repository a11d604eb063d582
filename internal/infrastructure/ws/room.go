package ws

import "sort"

// index is a two-way set: key → members. It holds both room → users and
// user → rooms. Callers hold the Manager lock.
type index map[string]map[string]struct{}

func (ix index) add(key, member string) bool {
	members, ok := ix[key]
	if !ok {
		members = make(map[string]struct{})
		ix[key] = members
	}
	if _, exists := members[member]; exists {
		return false
	}
	members[member] = struct{}{}
	return true
}

// remove deletes member and drops the key once it has no members left.
func (ix index) remove(key, member string) bool {
	members, ok := ix[key]
	if !ok {
		return false
	}
	if _, exists := members[member]; !exists {
		return false
	}
	delete(members, member)
	if len(members) == 0 {
		delete(ix, key)
	}
	return true
}

func (ix index) members(key string) []string {
	return sortedKeys(ix[key])
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
