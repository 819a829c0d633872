package artifact_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/churn/internal/artifact"
	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/internal/ml/forest"
	"github.com/okian/churn/internal/ml/mltest"
	"github.com/okian/churn/internal/ml/preprocess"
	"github.com/okian/churn/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/mat"
)

func TestSaveLoad(t *testing.T) {
	Convey("Given fitted artifacts", t, func() {
		ctx := context.Background()
		p, clf, err := mltest.Fit(ctx, 120, 1)
		So(err, ShouldBeNil)
		dir := t.TempDir()
		tPath := filepath.Join(dir, "nested", "preprocessor.gob")

		Convey("When saving the transformer", func() {
			info, err := artifact.Save(ctx, tPath, artifact.KindTransformer, p)
			So(err, ShouldBeNil)

			Convey("Then the envelope should describe it", func() {
				So(info.Kind, ShouldEqual, artifact.KindTransformer)
				So(info.Version, ShouldEqual, artifact.FormatVersion)
				So(info.ID.String(), ShouldNotBeEmpty)
				So(info.CreatedAt.IsZero(), ShouldBeFalse)
			})

			Convey("Then loading it should restore an equivalent transformer", func() {
				restored := &preprocess.Pipeline{}
				got, err := artifact.Load(ctx, tPath, artifact.KindTransformer, restored)
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, info.ID)

				rows := []customer.Record{customer.Sample()}
				a, _ := p.Transform(rows)
				b, err := restored.Transform(rows)
				So(err, ShouldBeNil)
				So(mat.Equal(a, b), ShouldBeTrue)
			})

			Convey("Then loading it as a model should fail with a kind error", func() {
				_, err := artifact.Load(ctx, tPath, artifact.KindModel, &forest.Classifier{})
				So(errors.Is(err, artifact.ErrArtifactKind), ShouldBeTrue)
			})

			Convey("Then no temp files should remain", func() {
				entries, err := os.ReadDir(filepath.Dir(tPath))
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
			})
		})

		Convey("When loading a missing path", func() {
			_, err := artifact.Load(ctx, filepath.Join(dir, "absent.gob"), artifact.KindModel, &forest.Classifier{})

			Convey("Then it should report the missing artifact", func() {
				So(errors.Is(err, artifact.ErrArtifactMissing), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "absent.gob")
			})
		})

		Convey("When loading garbage", func() {
			bad := filepath.Join(dir, "bad.gob")
			So(os.WriteFile(bad, []byte("not an artifact"), 0o600), ShouldBeNil)
			_, err := artifact.Load(ctx, bad, artifact.KindModel, clf)

			Convey("Then it should report corruption", func() {
				So(errors.Is(err, artifact.ErrArtifactCorrupt), ShouldBeTrue)
			})
		})
	})
}

func TestLoadBundle(t *testing.T) {
	Convey("Given a saved transformer and model", t, func() {
		ctx := context.Background()
		var buf bytes.Buffer
		So(logger.Init(logger.WithWriter(&buf)), ShouldBeNil)

		p, clf, err := mltest.Fit(ctx, 120, 2)
		So(err, ShouldBeNil)
		dir := t.TempDir()
		tPath := filepath.Join(dir, "preprocessor.gob")
		mPath := filepath.Join(dir, "model.gob")
		_, err = artifact.Save(ctx, tPath, artifact.KindTransformer, p)
		So(err, ShouldBeNil)
		_, err = artifact.Save(ctx, mPath, artifact.KindModel, clf)
		So(err, ShouldBeNil)

		Convey("When loading the bundle", func() {
			b, err := artifact.NewLoader(tPath, mPath).LoadBundle(ctx)

			Convey("Then both artifacts should be usable together", func() {
				So(err, ShouldBeNil)
				X, err := b.Transformer.Transform([]customer.Record{customer.Sample()})
				So(err, ShouldBeNil)
				proba, err := b.Model.PredictProba(X)
				So(err, ShouldBeNil)
				So(proba.At(0, 0)+proba.At(0, 1), ShouldAlmostEqual, 1.0, 1e-9)
				So(b.ModelInfo.Kind, ShouldEqual, artifact.KindModel)
			})

			Convey("Then the log should record paths and existence", func() {
				So(buf.String(), ShouldContainSubstring, "loading artifact")
				So(buf.String(), ShouldContainSubstring, "exists=true")
				So(buf.String(), ShouldContainSubstring, "artifact loaded")
			})
		})

		Convey("When the model file is missing", func() {
			So(os.Remove(mPath), ShouldBeNil)
			_, err := artifact.NewLoader(tPath, mPath).LoadBundle(ctx)

			Convey("Then loading should fail naming the model", func() {
				So(errors.Is(err, artifact.ErrArtifactMissing), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "model")
				So(buf.String(), ShouldContainSubstring, "exists=false")
			})
		})

		Convey("When the model was fitted on another width", func() {
			X := mat.NewDense(4, 2, []float64{0, 1, 1, 0, 0, 0, 1, 1})
			other := forest.New(forest.WithEstimators(2))
			So(other.Fit(ctx, X, []int{0, 1, 0, 1}), ShouldBeNil)
			_, err := artifact.Save(ctx, mPath, artifact.KindModel, other)
			So(err, ShouldBeNil)

			_, err = artifact.NewLoader(tPath, mPath).LoadBundle(ctx)

			Convey("Then loading should fail with a mismatch", func() {
				So(errors.Is(err, artifact.ErrBundleMismatch), ShouldBeTrue)
			})
		})
	})
}
