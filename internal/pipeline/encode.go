package pipeline

import "sort"

// OneHotEncoder expands categorical features into indicator columns.
// Categories never seen in training encode as all zeros.
type OneHotEncoder struct {
	Categories [][]string
}

// FitOneHotEncoder collects the sorted categories of each feature from
// already-imputed values.
func FitOneHotEncoder(values [][]string) OneHotEncoder {
	if len(values) == 0 {
		return OneHotEncoder{}
	}
	k := len(values[0])
	cats := make([][]string, k)
	for j := 0; j < k; j++ {
		seen := make(map[string]struct{})
		for _, row := range values {
			if _, ok := seen[row[j]]; !ok {
				seen[row[j]] = struct{}{}
				cats[j] = append(cats[j], row[j])
			}
		}
		sort.Strings(cats[j])
	}
	return OneHotEncoder{Categories: cats}
}

// Width is the number of indicator columns produced.
func (e OneHotEncoder) Width() int {
	w := 0
	for _, c := range e.Categories {
		w += len(c)
	}
	return w
}

// Encode appends indicator columns for one row to dst.
func (e OneHotEncoder) Encode(dst []float64, values []string) []float64 {
	for j, cats := range e.Categories {
		hit := sort.SearchStrings(cats, values[j])
		for i := range cats {
			if i == hit && cats[i] == values[j] {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		}
	}
	return dst
}
