package pipeline

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/manohar-125/ThalAI-App/internal/common"
)

// ErrTooFewPerClass is returned when a class cannot be represented in both
// partitions.
var ErrTooFewPerClass = errors.New("least populated class has fewer than 2 members")

// StratifiedSplit partitions sample indices so each class keeps its share
// in both partitions. The result depends only on y, testRatio and seed.
func StratifiedSplit(y []int, testRatio float64, seed int64) (train, test []int, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("%w: test ratio %v must be in (0, 1)", common.ErrInvalidConfig, testRatio)
	}

	byClass := make(map[int][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	if len(byClass) < 2 {
		return nil, nil, common.ErrSingleClass
	}

	labels := make([]int, 0, len(byClass))
	for label := range byClass {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	rnd := rand.New(rand.NewSource(seed))
	for _, label := range labels {
		idx := byClass[label]
		if len(idx) < 2 {
			return nil, nil, fmt.Errorf("%w: class %d has %d", ErrTooFewPerClass, label, len(idx))
		}
		rnd.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })

		k := int(math.Round(testRatio * float64(len(idx))))
		if k < 1 {
			k = 1
		}
		if k > len(idx)-1 {
			k = len(idx) - 1
		}
		test = append(test, idx[:k]...)
		train = append(train, idx[k:]...)
	}

	rnd.Shuffle(len(train), func(a, b int) { train[a], train[b] = train[b], train[a] })
	rnd.Shuffle(len(test), func(a, b int) { test[a], test[b] = test[b], test[a] })
	return train, test, nil
}
