package deliberation

import (
	"fmt"
	"math/rand/v2"
)

// PartitionIndices splits the indices 0..n-1 into balanced groups of at
// most maxGroupSize elements. The indices are shuffled once before
// partitioning so no group is deterministically predictable from the
// original input ordering.
//
// Group sizes differ by at most one: with numGroups = ceil(n/maxGroupSize),
// the first n % numGroups groups receive one extra element. The union of
// all groups is exactly 0..n-1.
//
// maxGroupSize must already be clamped to a valid value by the caller;
// a value below 1 is a contract breach and panics.
func PartitionIndices(n, maxGroupSize int) [][]int {
	if maxGroupSize < 1 {
		panic(fmt.Sprintf("partition: maxGroupSize must be >= 1, got %d", maxGroupSize))
	}
	if n == 0 {
		return nil
	}

	indices := rand.Perm(n)

	numGroups := (n + maxGroupSize - 1) / maxGroupSize
	base := n / numGroups
	extra := n % numGroups

	groups := make([][]int, 0, numGroups)
	start := 0
	for g := 0; g < numGroups; g++ {
		size := base
		if g < extra {
			size++
		}
		groups = append(groups, indices[start:start+size])
		start += size
	}

	return groups
}

// Partition splits statements into balanced, shuffled groups of at most
// maxGroupSize. It is a convenience over PartitionIndices for callers that
// do not need to track where each statement came from.
func Partition(statements []string, maxGroupSize int) [][]string {
	groups := PartitionIndices(len(statements), maxGroupSize)

	out := make([][]string, len(groups))
	for g, idxs := range groups {
		out[g] = make([]string, len(idxs))
		for i, idx := range idxs {
			out[g][i] = statements[idx]
		}
	}
	return out
}
