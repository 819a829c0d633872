package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ErrSplit is returned when a split cannot leave both sides non-empty.
var ErrSplit = errors.New("invalid split")

// StratifiedSplit partitions row indices into train and test so that each
// class keeps its share of the test set. The test set holds
// ceil(testSize*n) rows. The result depends only on labels, testSize and seed.
func StratifiedSplit(labels []int, testSize float64, seed int64) (train, test []int, err error) {
	n := len(labels)
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("%w: test size %v outside (0,1)", ErrSplit, testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || nTest >= n {
		return nil, nil, fmt.Errorf("%w: %d rows cannot hold %d test rows", ErrSplit, n, nTest)
	}

	byClass := map[int][]int{}
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	quota := allocate(classes, byClass, nTest, n)

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible splits
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		test = append(test, idx[:quota[c]]...)
		train = append(train, idx[quota[c]:]...)
	}
	rng.Shuffle(len(train), func(a, b int) { train[a], train[b] = train[b], train[a] })
	rng.Shuffle(len(test), func(a, b int) { test[a], test[b] = test[b], test[a] })
	return train, test, nil
}

// allocate distributes total test rows over classes by largest remainder.
// Ties go to the larger class, then the lower label.
func allocate(classes []int, byClass map[int][]int, total, n int) map[int]int {
	quota := make(map[int]int, len(classes))
	rem := make(map[int]float64, len(classes))
	assigned := 0
	for _, c := range classes {
		exact := float64(len(byClass[c])) * float64(total) / float64(n)
		quota[c] = int(math.Floor(exact))
		rem[c] = exact - float64(quota[c])
		assigned += quota[c]
	}

	order := append([]int(nil), classes...)
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := order[a], order[b]
		if rem[ca] != rem[cb] {
			return rem[ca] > rem[cb]
		}
		return len(byClass[ca]) > len(byClass[cb])
	})
	for i := 0; assigned < total; i = (i + 1) % len(order) {
		c := order[i]
		if quota[c] < len(byClass[c]) {
			quota[c]++
			assigned++
		}
	}
	return quota
}
