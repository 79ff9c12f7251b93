package prediff

import "github.com/crdzbird/zipdelta/internal/zipformat"

// Pair is one matched (old, new) entry, or a new entry with no match.
type Pair struct {
	OldEntry zipformat.ZipEntry
	NewEntry zipformat.ZipEntry
	Matched  bool
}

// PairEntries implements spec.md §4.3 "Pairing": exact name match first,
// then a CRC32 similarity index (a rename without content change), else
// the new entry is unmatched and contributes no plan entry — its bytes
// will surface as a gap when the delta computer fills gaps (spec.md
// §4.5).
func PairEntries(oldEntries, newEntries []zipformat.ZipEntry) []Pair {
	byName := make(map[zipformat.EntryKey]zipformat.ZipEntry, len(oldEntries))
	byCRC := make(map[uint32][]zipformat.ZipEntry, len(oldEntries))
	for _, e := range oldEntries {
		byName[e.Key()] = e
		byCRC[e.CRC32] = append(byCRC[e.CRC32], e)
	}

	pairs := make([]Pair, 0, len(newEntries))
	for _, n := range newEntries {
		if old, ok := byName[n.Key()]; ok {
			pairs = append(pairs, Pair{OldEntry: old, NewEntry: n, Matched: true})
			continue
		}
		if candidates, ok := byCRC[n.CRC32]; ok && len(candidates) > 0 {
			pairs = append(pairs, Pair{OldEntry: candidates[0], NewEntry: n, Matched: true})
			continue
		}
		pairs = append(pairs, Pair{NewEntry: n, Matched: false})
	}
	return pairs
}
