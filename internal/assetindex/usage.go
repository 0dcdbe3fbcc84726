package assetindex

import (
	"sort"

	"scenedeck/internal/model"
)

// Usage is where each asset appears in the project.
type Usage struct {
	// Refs holds every asset's refs in visiting order.
	Refs map[string][]model.UsageRef

	// Order lists referenced asset ids by first use.
	Order []string
}

// UsageRefs walks the project. Scenes are visited by Order, cuts within a
// scene by Order; ties keep slice order.
func UsageRefs(scenes []model.Scene) Usage {
	u := Usage{Refs: make(map[string][]model.UsageRef), Order: []string{}}

	ordered := append([]model.Scene(nil), scenes...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	for _, scene := range ordered {
		cuts := append([]model.Cut(nil), scene.Cuts...)
		sort.SliceStable(cuts, func(i, j int) bool { return cuts[i].Order < cuts[j].Order })

		for i, cut := range cuts {
			if cut.AssetID == "" {
				continue
			}
			if _, seen := u.Refs[cut.AssetID]; !seen {
				u.Order = append(u.Order, cut.AssetID)
			}
			u.Refs[cut.AssetID] = append(u.Refs[cut.AssetID], model.UsageRef{
				SceneID:    scene.ID,
				SceneName:  scene.Name,
				SceneOrder: scene.Order,
				CutID:      cut.ID,
				CutOrder:   cut.Order,
				CutIndex:   i + 1,
			})
		}
	}
	return u
}

// Reorder assigns usage refs to the index entries and sorts them so that
// assets used earliest in the storyline come first. Unreferenced assets
// follow in their previous relative order.
func Reorder(idx *model.AssetIndex, usage Usage) {
	first := make(map[string]int, len(usage.Order))
	for i, id := range usage.Order {
		first[id] = i
	}

	type ranked struct {
		entry model.AssetIndexEntry
		rank  int
		pos   int
	}

	var used, unused []ranked
	for i, e := range idx.Assets {
		r := usage.Refs[e.ID]
		if len(r) == 0 {
			e.UsageRefs = []model.UsageRef{}
			unused = append(unused, ranked{entry: e, pos: i})
			continue
		}
		e.UsageRefs = append([]model.UsageRef{}, r...)
		used = append(used, ranked{entry: e, rank: first[e.ID], pos: i})
	}

	// Entries sharing an id share a rank and keep index order.
	sort.SliceStable(used, func(i, j int) bool {
		if used[i].rank != used[j].rank {
			return used[i].rank < used[j].rank
		}
		return used[i].pos < used[j].pos
	})

	out := make([]model.AssetIndexEntry, 0, len(idx.Assets))
	for _, r := range used {
		out = append(out, r.entry)
	}
	for _, r := range unused {
		out = append(out, r.entry)
	}
	idx.Assets = out
}
