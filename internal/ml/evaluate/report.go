// Package evaluate scores classifier output against held-out labels.
package evaluate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrLength is returned when label slices differ in length or are empty.
var ErrLength = errors.New("label slices must be non-empty and of equal length")

// Accuracy is the fraction of positions where yPred equals yTrue.
func Accuracy(yTrue, yPred []int) (float64, error) {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLength, len(yTrue), len(yPred))
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// ClassScores are the per-class metrics of a Report.
type ClassScores struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is a per-class precision/recall summary.
type Report struct {
	Classes     []int
	Scores      map[int]ClassScores
	Accuracy    float64
	MacroAvg    ClassScores
	WeightedAvg ClassScores
	Total       int
}

// NewReport computes a Report over every class present in yTrue or yPred.
// Undefined ratios (zero denominators) are reported as 0.
func NewReport(yTrue, yPred []int) (*Report, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	tp := map[int]int{}
	predicted := map[int]int{}
	actual := map[int]int{}
	for i := range yTrue {
		actual[yTrue[i]]++
		predicted[yPred[i]]++
		if yTrue[i] == yPred[i] {
			tp[yTrue[i]]++
		}
	}

	seen := map[int]struct{}{}
	for c := range actual {
		seen[c] = struct{}{}
	}
	for c := range predicted {
		seen[c] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	r := &Report{
		Classes:  classes,
		Scores:   make(map[int]ClassScores, len(classes)),
		Accuracy: acc,
		Total:    len(yTrue),
	}
	for _, c := range classes {
		s := ClassScores{
			Precision: ratio(tp[c], predicted[c]),
			Recall:    ratio(tp[c], actual[c]),
			Support:   actual[c],
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		r.Scores[c] = s

		r.MacroAvg.Precision += s.Precision
		r.MacroAvg.Recall += s.Recall
		r.MacroAvg.F1 += s.F1

		w := float64(s.Support)
		r.WeightedAvg.Precision += s.Precision * w
		r.WeightedAvg.Recall += s.Recall * w
		r.WeightedAvg.F1 += s.F1 * w
	}

	n := float64(len(classes))
	r.MacroAvg.Precision /= n
	r.MacroAvg.Recall /= n
	r.MacroAvg.F1 /= n
	r.MacroAvg.Support = r.Total

	total := float64(r.Total)
	r.WeightedAvg.Precision /= total
	r.WeightedAvg.Recall /= total
	r.WeightedAvg.F1 /= total
	r.WeightedAvg.Support = r.Total
	return r, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// String renders the report as a fixed-width table with two decimals.
func (r *Report) String() string {
	const (
		macro    = "macro avg"
		weighted = "weighted avg"
	)
	width := len(weighted)
	for _, c := range r.Classes {
		if l := len(strconv.Itoa(c)); l > width {
			width = l
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	row := func(name string, s ClassScores) {
		fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, name, s.Precision, s.Recall, s.F1, s.Support)
	}
	for _, c := range r.Classes {
		row(strconv.Itoa(c), r.Scores[c])
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Total)
	row(macro, r.MacroAvg)
	row(weighted, r.WeightedAvg)
	return b.String()
}
