package algo

import (
	"sort"
	"time"
)

// Unit is an indivisible set of items that must land in the same bin.
type Unit struct {
	ID        string
	Items     []string
	Size      time.Duration
	Resources []string
}

// Bin is one packed group.
type Bin struct {
	Units     []Unit
	Load      time.Duration
	resources map[string]struct{}
}

// Items returns the items of every unit in the bin, in unit order.
func (b *Bin) Items() []string {
	var items []string
	for _, u := range b.Units {
		items = append(items, u.Items...)
	}
	return items
}

func (b *Bin) conflicts(resources []string) bool {
	for _, r := range resources {
		if _, ok := b.resources[r]; ok {
			return true
		}
	}
	return false
}

func (b *Bin) add(u Unit) {
	if b.resources == nil {
		b.resources = make(map[string]struct{})
	}
	b.Units = append(b.Units, u)
	b.Load += u.Size
	for _, r := range u.Resources {
		b.resources[r] = struct{}{}
	}
}

// Packing is the outcome of PackLPT.
type Packing struct {
	Bins      []Bin
	Oversized []string // IDs of units larger than the capacity on their own
}

// PackLPT packs units with the longest-processing-time-first heuristic. The
// largest unit goes first (ties by ID) into the least loaded eligible bin,
// lowest index on ties. A bin is eligible when it shares no resource with the
// unit and stays within capacity; capacity <= 0 means unlimited. Up to target
// bins are opened freely; more are opened only when no bin is eligible.
func PackLPT(units []Unit, target int, capacity time.Duration) Packing {
	target = max(target, 1)
	ordered := append([]Unit(nil), units...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Size != ordered[j].Size {
			return ordered[i].Size > ordered[j].Size
		}
		return ordered[i].ID < ordered[j].ID
	})

	var p Packing
	for _, u := range ordered {
		if capacity > 0 && u.Size > capacity {
			p.Oversized = append(p.Oversized, u.ID)
			p.Bins = append(p.Bins, Bin{})
			p.Bins[len(p.Bins)-1].add(u)
			continue
		}

		best := -1
		for i := range p.Bins {
			b := &p.Bins[i]
			if b.conflicts(u.Resources) || (capacity > 0 && b.Load+u.Size > capacity) {
				continue
			}
			if best < 0 || b.Load < p.Bins[best].Load {
				best = i
			}
		}
		if best < 0 || (len(p.Bins) < target && p.Bins[best].Load > 0) {
			p.Bins = append(p.Bins, Bin{})
			best = len(p.Bins) - 1
		}
		p.Bins[best].add(u)
	}
	return p
}
