package reduce

import "github.com/khalfella/storage-reduce1/debug"

// Merge folds src into dst in place: their owner lists are merged by
// uuid, owners present in both have their object lists merged by
// uuid, and src is left empty. Both workers must already be
// finalized. dst survives as the merged result; src must not be used
// afterwards.
//
// The per-namespace counters follow a two-step rule mirrored from the
// original implementation this reducer replaces: while walking each
// pair of object lists, only the counters affected by that specific
// object (a duplicate found in both workers, or an object that exists
// only on src's side) are adjusted immediately; everything else -
// directory counts, and any counters not touched by the walk because
// one list ran out before the other - is reconciled by one unconditional
// per-namespace addition at the end. Splitting it any other way risks
// double-counting objects that were never visited pairwise.
func Merge(dst, src *Worker) {
	dst.ownerList = mergeOwnerLists(dst, src)
	src.ownerList = nil
	src.objLists = nil
}

func mergeOwnerLists(dst, src *Worker) []*Owner {
	a := dst.ownerList
	b := src.ownerList
	merged := make([]*Owner, 0, len(a)+len(b))

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].UUID == b[j].UUID:
			mergeOwners(a[i], dst, b[j], src)
			merged = append(merged, a[i])
			i++
			j++
		case a[i].UUID < b[j].UUID:
			merged = append(merged, a[i])
			i++
		default:
			merged = append(merged, b[j])
			dst.objLists[b[j]] = src.objLists[b[j]]
			j++
		}
	}
	merged = append(merged, a[i:]...)
	for _, own := range b[j:] {
		dst.objLists[own] = src.objLists[own]
	}
	merged = append(merged, b[j:]...)

	debug.AssertFunc(func() bool { return ownersSortedUnique(merged) }, "merged owner list is not strictly sorted")
	return merged
}

func ownersSortedUnique(owners []*Owner) bool {
	for i := 1; i < len(owners); i++ {
		if owners[i-1].UUID >= owners[i].UUID {
			return false
		}
	}
	return true
}

// mergeOwners merges own2's (src's) object list into own1's (dst's),
// updating both owners' per-namespace counters, and stores the merged
// object list for own1 back into dst.objLists.
func mergeOwners(own1 *Owner, dst *Worker, own2 *Owner, src *Worker) {
	list1 := dst.objLists[own1]
	list2 := src.objLists[own2]
	merged := make([]*Object, 0, len(list1)+len(list2))

	i, j := 0, 0
	for i < len(list1) && j < len(list2) {
		o1, o2 := list1[i], list2[j]
		switch {
		case o1.UUID == o2.UUID:
			nsid := o2.NSID
			own2.Keys[nsid]--
			own2.Objs[nsid]--
			own2.Bytes[nsid] -= o2.Size
			own1.Keys[nsid]++

			merged = append(merged, o1)
			i++
			j++
		case o1.UUID < o2.UUID:
			merged = append(merged, o1)
			i++
		default:
			nsid := o2.NSID
			own2.Keys[nsid]--
			own2.Objs[nsid]--
			own2.Bytes[nsid] -= o2.Size

			own1.Objs[nsid]++
			own1.Keys[nsid]++
			own1.Bytes[nsid] += o2.Size

			merged = append(merged, o2)
			j++
		}
	}
	merged = append(merged, list1[i:]...)
	merged = append(merged, list2[j:]...)

	for n := 0; n < MaxNamespaces; n++ {
		own1.Dirs[n] += own2.Dirs[n]
		own1.Objs[n] += own2.Objs[n]
		own1.Keys[n] += own2.Keys[n]
		own1.Bytes[n] += own2.Bytes[n]
		own2.Dirs[n] = 0
		own2.Objs[n] = 0
		own2.Keys[n] = 0
		own2.Bytes[n] = 0
	}

	debug.AssertFunc(func() bool { return objectsSortedUnique(merged) }, "merged object list is not strictly sorted")

	dst.objLists[own1] = merged
	delete(src.objLists, own2)
}

func objectsSortedUnique(objs []*Object) bool {
	for i := 1; i < len(objs); i++ {
		if objs[i-1].UUID >= objs[i].UUID {
			return false
		}
	}
	return true
}
