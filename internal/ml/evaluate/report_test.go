package evaluate_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/okian/churn/internal/ml/evaluate"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAccuracy(t *testing.T) {
	Convey("Given predictions and labels", t, func() {
		Convey("Then accuracy is the matching fraction", func() {
			acc, err := evaluate.Accuracy([]int{0, 1, 1, 0}, []int{0, 1, 0, 0})
			So(err, ShouldBeNil)
			So(acc, ShouldEqual, 0.75)
		})

		Convey("Then mismatched lengths should fail", func() {
			_, err := evaluate.Accuracy([]int{0, 1}, []int{0})
			So(errors.Is(err, evaluate.ErrLength), ShouldBeTrue)
			_, err = evaluate.Accuracy(nil, nil)
			So(errors.Is(err, evaluate.ErrLength), ShouldBeTrue)
		})
	})
}

func TestReport(t *testing.T) {
	Convey("Given a small binary result", t, func() {
		// class 0: tp=2 fp=1 fn=1 ; class 1: tp=1 fp=1 fn=1
		yTrue := []int{0, 0, 0, 1, 1}
		yPred := []int{0, 0, 1, 0, 1}
		r, err := evaluate.NewReport(yTrue, yPred)
		So(err, ShouldBeNil)

		Convey("Then per-class scores should match hand counts", func() {
			So(r.Classes, ShouldResemble, []int{0, 1})
			So(r.Scores[0].Precision, ShouldAlmostEqual, 2.0/3.0, 1e-12)
			So(r.Scores[0].Recall, ShouldAlmostEqual, 2.0/3.0, 1e-12)
			So(r.Scores[0].Support, ShouldEqual, 3)
			So(r.Scores[1].Precision, ShouldAlmostEqual, 0.5, 1e-12)
			So(r.Scores[1].Recall, ShouldAlmostEqual, 0.5, 1e-12)
			So(r.Scores[1].F1, ShouldAlmostEqual, 0.5, 1e-12)
			So(r.Accuracy, ShouldAlmostEqual, 0.6, 1e-12)
		})

		Convey("Then averages should be macro and support-weighted", func() {
			So(r.MacroAvg.Recall, ShouldAlmostEqual, (2.0/3.0+0.5)/2, 1e-12)
			So(r.WeightedAvg.Recall, ShouldAlmostEqual, (2.0/3.0*3+0.5*2)/5, 1e-12)
			So(r.WeightedAvg.Support, ShouldEqual, 5)
		})

		Convey("Then the text table should list every row", func() {
			s := r.String()
			So(s, ShouldContainSubstring, "precision")
			So(s, ShouldContainSubstring, "accuracy")
			So(s, ShouldContainSubstring, "macro avg")
			So(s, ShouldContainSubstring, "weighted avg")
			So(s, ShouldContainSubstring, "0.60")
			lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
			So(lines, ShouldHaveLength, 8)
		})
	})

	Convey("Given a class that is never predicted", t, func() {
		r, err := evaluate.NewReport([]int{0, 1}, []int{0, 0})
		So(err, ShouldBeNil)

		Convey("Then its precision should be zero rather than NaN", func() {
			So(r.Scores[1].Precision, ShouldEqual, 0.0)
			So(r.Scores[1].F1, ShouldEqual, 0.0)
		})
	})
}
