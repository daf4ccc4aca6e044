package pipeline

import "sort"

// ClassMetrics holds per-class precision, recall and F1.
type ClassMetrics struct {
	Label     int     `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is the held-out evaluation summary. It is diagnostic output only.
type Report struct {
	Classes  []ClassMetrics `json:"classes"`
	Accuracy float64        `json:"accuracy"`
	Samples  int            `json:"samples"`
}

// Evaluate compares predictions against the truth, one entry per label seen
// in either slice.
func Evaluate(yTrue, yPred []int) Report {
	r := Report{Samples: len(yTrue)}
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return r
	}

	labels := map[int]struct{}{}
	correct := 0
	for i := range yTrue {
		labels[yTrue[i]] = struct{}{}
		labels[yPred[i]] = struct{}{}
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	r.Accuracy = float64(correct) / float64(len(yTrue))

	sorted := make([]int, 0, len(labels))
	for l := range labels {
		sorted = append(sorted, l)
	}
	sort.Ints(sorted)

	for _, label := range sorted {
		tp, fp, fn, support := 0, 0, 0, 0
		for i := range yTrue {
			t, p := yTrue[i] == label, yPred[i] == label
			switch {
			case t && p:
				tp++
			case !t && p:
				fp++
			case t && !p:
				fn++
			}
			if t {
				support++
			}
		}
		m := ClassMetrics{Label: label, Support: support}
		if tp+fp > 0 {
			m.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			m.Recall = float64(tp) / float64(tp+fn)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes = append(r.Classes, m)
	}
	return r
}
