package service_test

import (
	"context"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	service "github.com/okian/churn/internal/app"
	"github.com/okian/churn/internal/artifact"
	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/internal/domain/prediction"
	"github.com/okian/churn/internal/ml/mltest"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given artifacts saved to disk and loaded as a bundle", t, func() {
		ctx := context.Background()
		p, clf, err := mltest.Fit(ctx, 300, 9)
		So(err, ShouldBeNil)

		dir := t.TempDir()
		tPath := filepath.Join(dir, "preprocessor.gob")
		mPath := filepath.Join(dir, "model.gob")
		_, err = artifact.Save(ctx, tPath, artifact.KindTransformer, p)
		So(err, ShouldBeNil)
		_, err = artifact.Save(ctx, mPath, artifact.KindModel, clf)
		So(err, ShouldBeNil)

		bundle, err := artifact.NewLoader(tPath, mPath).LoadBundle(ctx)
		So(err, ShouldBeNil)

		svc := service.New(service.WithBundle(bundle))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then loaded artifacts should predict like the in-memory ones", func() {
			direct := service.New(service.WithTransformer(p), service.WithClassifier(clf))
			So(direct.Start(ctx), ShouldBeNil)

			rng := rand.New(rand.NewSource(1))
			for i := 0; i < 20; i++ {
				rec := customer.Random(rng)
				a, err := svc.Predict(ctx, rec)
				So(err, ShouldBeNil)
				b, err := direct.Predict(ctx, rec)
				So(err, ShouldBeNil)
				So(a, ShouldResemble, b)
			}
		})

		Convey("Then artifact IDs should be exposed", func() {
			tInfo, mInfo := svc.Artifacts()
			So(tInfo.ID, ShouldEqual, bundle.TransformerInfo.ID)
			So(mInfo.ID, ShouldEqual, bundle.ModelInfo.ID)
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		p, clf, err := mltest.Fit(ctx, 200, 4)
		So(err, ShouldBeNil)
		svc := service.New(service.WithTransformer(p), service.WithClassifier(clf))
		So(svc.Start(ctx), ShouldBeNil)

		want, err := svc.Predict(ctx, customer.Sample())
		So(err, ShouldBeNil)

		Convey("When many goroutines predict the same record", func() {
			const workers = 16
			results := make([]prediction.Result, workers)
			errs := make([]error, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results[i], errs[i] = svc.Predict(ctx, customer.Sample())
				}()
			}
			wg.Wait()

			Convey("Then every result should be identical", func() {
				for i := 0; i < workers; i++ {
					So(errs[i], ShouldBeNil)
					So(results[i], ShouldResemble, want)
				}
			})
		})
	})
}
