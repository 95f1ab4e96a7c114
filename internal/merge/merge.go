// Package merge implements the deterministic last-writer-wins merge over
// locally- and remotely-mutated record collections.
//
// The functions here are pure: no I/O, no clock reads, no mutation of the
// inputs. Resolution is per key: a key present on one side only is taken
// unchanged; a key present on both sides is resolved by comparing the
// records' modification timestamps as ordered strings, the strictly
// greater one winning. On an exact tie the local side wins. The tie-break
// is a deliberate, narrow policy, not a conflict-free merge: under ties
// the operation is not commutative.
//
// Tombstoned records flow through like any other record; deletion is just
// a field change governed by the same timestamp rule. The output of a
// merge is a valid "local" input for a subsequent merge, which is what
// the sync retry path relies on.
package merge

// Record is a keyed, timestamped collection member.
type Record interface {
	// Key is the record's immutable identity within its collection.
	Key() string
	// Modified is the record's last-modification timestamp, an ISO-8601
	// string compared lexicographically.
	Modified() string
}

// Collections merges a local and a remote instance of the same keyed
// collection into one canonical collection containing the union of keys.
//
// Output order is deterministic: local records in their input order
// (possibly replaced by newer remote versions in place), followed by
// remote-only records in their input order.
func Collections[T Record](local, remote []T) []T {
	merged := make([]T, len(local), len(local)+len(remote))
	index := make(map[string]int, len(local))
	for i, rec := range local {
		merged[i] = rec
		index[rec.Key()] = i
	}

	for _, rec := range remote {
		i, ok := index[rec.Key()]
		if !ok {
			index[rec.Key()] = len(merged)
			merged = append(merged, rec)
			continue
		}
		// Strictly greater wins; ties keep local.
		if rec.Modified() > merged[i].Modified() {
			merged[i] = rec
		}
	}

	return merged
}

// Singleton resolves the two sides of a singleton value under the same
// rule as Collections: the strictly newer side wins, ties keep local, and
// a side that is absent (nil) loses to any present side.
func Singleton[T interface{ Modified() string }](local, remote *T) *T {
	switch {
	case local == nil:
		return remote
	case remote == nil:
		return local
	case (*remote).Modified() > (*local).Modified():
		return remote
	default:
		return local
	}
}
