// Package ledger holds the serial-number rules of a (customer, project)
// ledger: serials are exactly 1..N with no gaps and no duplicates.
package ledger

import (
	"fmt"
	"sort"
)

// Entry is the part of a transaction the serial rules look at.
type Entry struct {
	ID     int64
	Serial int
}

// Change rewrites the serial of one transaction.
type Change struct {
	ID   int64
	From int
	To   int
}

// NextSerial returns the serial for a new entry given the current maximum
// (0 when the ledger is empty).
func NextSerial(max int) int {
	if max < 0 {
		max = 0
	}
	return max + 1
}

// Renumber assigns 1..N positionally, ordered by serial then id, and
// returns only the entries whose serial changes.
func Renumber(entries []Entry) []Change {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Serial != ordered[j].Serial {
			return ordered[i].Serial < ordered[j].Serial
		}
		return ordered[i].ID < ordered[j].ID
	})

	var changes []Change
	for i, e := range ordered {
		want := i + 1
		if e.Serial != want {
			changes = append(changes, Change{ID: e.ID, From: e.Serial, To: want})
		}
	}
	return changes
}

// Report describes how a set of serials deviates from 1..N.
type Report struct {
	Count      int
	Gaps       []int
	Duplicates []int
	OutOfRange []int
}

func (r Report) Contiguous() bool {
	return len(r.Gaps) == 0 && len(r.Duplicates) == 0 && len(r.OutOfRange) == 0
}

func (r Report) String() string {
	if r.Contiguous() {
		return fmt.Sprintf("%d entries, contiguous", r.Count)
	}
	return fmt.Sprintf("%d entries, gaps=%v duplicates=%v out_of_range=%v", r.Count, r.Gaps, r.Duplicates, r.OutOfRange)
}

// Verify checks serials against 1..len(serials).
func Verify(serials []int) Report {
	n := len(serials)
	r := Report{Count: n}
	seen := make(map[int]int, n)
	for _, s := range serials {
		seen[s]++
	}

	for s, c := range seen {
		if s < 1 || s > n {
			r.OutOfRange = append(r.OutOfRange, s)
		}
		if c > 1 {
			r.Duplicates = append(r.Duplicates, s)
		}
	}
	for s := 1; s <= n; s++ {
		if seen[s] == 0 {
			r.Gaps = append(r.Gaps, s)
		}
	}
	sort.Ints(r.OutOfRange)
	sort.Ints(r.Duplicates)
	return r
}

// VerifyEntries is Verify over entries.
func VerifyEntries(entries []Entry) Report {
	serials := make([]int, len(entries))
	for i, e := range entries {
		serials[i] = e.Serial
	}
	return Verify(serials)
}
