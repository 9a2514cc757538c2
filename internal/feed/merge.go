// Package feed assembles the gallery a signed-in user sees from two live
// queries: their own recent uploads and the global recent uploads.
//
// WHY TWO QUERIES?
// The global query is capped (50 by default). A user who uploads while
// the feed is busy could see their own image pushed out of that window
// before they ever see it. The second query, over their own collection,
// guarantees their latest uploads are always in the gallery.
//
// Because every image is stored in both collections, the two lists
// overlap. Merge removes the overlap and sorts the result; Aggregator
// keeps both queries live and re-merges on every update.
//
// THE FLOW:
//
//	docstore.Subscribe(users/{uid}/images) ─┐
//	                                        ├─→ Aggregator → Merge → State → View
//	docstore.Subscribe(images)          ────┘
package feed

import (
	"slices"

	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

// Merge combines the user's records with the global ones.
//
// The user's records go first, duplicates by id keep their first
// occurrence (so the user's copy wins), and the result is stably sorted by
// CreatedAt, newest first. Ties keep their concatenation order. The inputs
// are not modified.
//
// WHY A STABLE SORT?
// Both copies of a record carry the same timestamp, and one batch stamps
// every write with the same time too. With an unstable sort, records with
// equal timestamps could swap places between two merges and the gallery
// would visibly reshuffle on every update. SortStableFunc keeps the order
// they arrived in: the user's records first, then the global ones.
func Merge(user, global []model.Image) []model.Image {
	out := make([]model.Image, 0, len(user)+len(global))
	seen := make(map[string]struct{}, len(user)+len(global))

	for _, img := range slices.Concat(user, global) {
		if _, dup := seen[img.ID]; dup {
			continue
		}
		seen[img.ID] = struct{}{}
		out = append(out, img)
	}

	slices.SortStableFunc(out, func(a, b model.Image) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}
