package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	service "github.com/okian/churn/internal/app"
	"github.com/okian/churn/internal/adapters/cache"
	"github.com/okian/churn/internal/artifact"
	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/internal/domain/prediction"
	"github.com/okian/churn/internal/ml/mltest"
	"github.com/okian/churn/pkg/logger"
	"github.com/okian/churn/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/mat"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// failingCache reports every lookup as a backend error.
type failingCache struct{ sets int }

func (c *failingCache) Get(context.Context, string) (prediction.Result, bool, error) {
	return prediction.Result{}, false, errors.New("connection refused")
}

func (c *failingCache) Set(context.Context, string, prediction.Result) { c.sets++ }

// cacheLookups reads the lookup counter for one result label.
func cacheLookups(result string) float64 {
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if !strings.HasSuffix(f.GetName(), "cache_lookups_total") {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

// stubClassifier returns fixed output or fails on demand.
type stubClassifier struct {
	label int
	proba []float64
	err   error
	panic bool
	calls int
}

func (c *stubClassifier) Predict(mat.Matrix) ([]int, error) {
	c.calls++
	if c.panic {
		panic("index out of range")
	}
	if c.err != nil {
		return nil, c.err
	}
	return []int{c.label}, nil
}

func (c *stubClassifier) PredictProba(mat.Matrix) (*mat.Dense, error) {
	return mat.NewDense(1, len(c.proba), c.proba), nil
}

type stubTransformer struct{ err error }

func (t stubTransformer) Transform(rows []customer.Record) (*mat.Dense, error) {
	if t.err != nil {
		return nil, t.err
	}
	return mat.NewDense(len(rows), 1, nil), nil
}

func TestService_Start(t *testing.T) {
	Convey("Given a service without artifacts", t, func() {
		svc := service.New()

		Convey("Then start should refuse", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrMissingArtifact), ShouldBeTrue)
			So(svc.Ready(), ShouldBeFalse)
		})

		Convey("Then predict should refuse before start", func() {
			_, err := svc.Predict(context.Background(), customer.Sample())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})

	Convey("Given a service with only a transformer", t, func() {
		svc := service.New(service.WithTransformer(stubTransformer{}))
		err := svc.Start(context.Background())
		So(errors.Is(err, service.ErrMissingArtifact), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "model")
	})

	Convey("Given a complete service", t, func() {
		svc := service.New(
			service.WithTransformer(stubTransformer{}),
			service.WithClassifier(&stubClassifier{label: 1, proba: []float64{0.2, 0.8}}),
		)
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("Then it should be ready until stopped", func() {
			So(svc.Ready(), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, true)
			svc.Stop()
			So(svc.Ready(), ShouldBeFalse)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_Predict(t *testing.T) {
	ctx := context.Background()

	Convey("Given a stubbed classifier", t, func() {
		clf := &stubClassifier{label: 1, proba: []float64{0.12346, 0.87654}}
		svc := service.New(service.WithTransformer(stubTransformer{}), service.WithClassifier(clf))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When predicting", func() {
			res, err := svc.Predict(ctx, customer.Sample())

			Convey("Then the label and rounded probabilities should be returned", func() {
				So(err, ShouldBeNil)
				So(res.Prediction, ShouldEqual, prediction.LabelChurn)
				So(res.Probability.Churn, ShouldEqual, 0.8765)
				So(res.Probability.NoChurn, ShouldEqual, 0.1235)
				So(svc.GetStats()["served"], ShouldEqual, int64(1))
			})
		})

		Convey("When the classifier fails", func() {
			clf.err = errors.New("boom")
			_, err := svc.Predict(ctx, customer.Sample())

			Convey("Then a processing error should be returned", func() {
				So(errors.Is(err, service.ErrProcessing), ShouldBeTrue)
				So(svc.GetStats()["failures"], ShouldEqual, int64(1))
			})
		})

		Convey("When the classifier panics", func() {
			clf.panic = true
			_, err := svc.Predict(ctx, customer.Sample())

			Convey("Then the panic should surface as a processing error", func() {
				So(errors.Is(err, service.ErrProcessing), ShouldBeTrue)
			})

			Convey("Then the service should keep serving", func() {
				clf.panic = false
				_, err := svc.Predict(ctx, customer.Sample())
				So(err, ShouldBeNil)
			})
		})

		Convey("When the classifier returns an unknown class", func() {
			clf.label = 7
			_, err := svc.Predict(ctx, customer.Sample())
			So(errors.Is(err, service.ErrProcessing), ShouldBeTrue)
		})
	})

	Convey("Given a failing transformer", t, func() {
		svc := service.New(
			service.WithTransformer(stubTransformer{err: errors.New("encoder invariant")}),
			service.WithClassifier(&stubClassifier{proba: []float64{1, 0}}),
		)
		So(svc.Start(ctx), ShouldBeNil)
		_, err := svc.Predict(ctx, customer.Sample())
		So(errors.Is(err, service.ErrProcessing), ShouldBeTrue)
	})

	Convey("Given a cached service", t, func() {
		clf := &stubClassifier{label: 0, proba: []float64{0.7, 0.3}}
		mem := cache.NewMemory()
		svc := service.New(
			service.WithTransformer(stubTransformer{}),
			service.WithClassifier(clf),
			service.WithCache(mem),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When the same record is submitted twice", func() {
			hits, misses := cacheLookups(metrics.CacheHit), cacheLookups(metrics.CacheMiss)
			first, err := svc.Predict(ctx, customer.Sample())
			So(err, ShouldBeNil)
			second, err := svc.Predict(ctx, customer.Sample())
			So(err, ShouldBeNil)

			Convey("Then the classifier should run once and results match", func() {
				So(clf.calls, ShouldEqual, 1)
				So(second, ShouldResemble, first)
				stats := svc.GetStats()
				So(stats["cacheHits"], ShouldEqual, int64(1))
				So(stats["cacheSize"], ShouldEqual, int64(1))
			})

			Convey("Then each lookup should be counted once", func() {
				So(cacheLookups(metrics.CacheHit), ShouldEqual, hits+1)
				So(cacheLookups(metrics.CacheMiss), ShouldEqual, misses+1)
			})
		})
	})

	Convey("Given two models sharing one cache", t, func() {
		mem := cache.NewMemory()
		newSvc := func(clf *stubClassifier) *service.Service {
			svc := service.New(
				service.WithTransformer(stubTransformer{}),
				service.WithClassifier(clf),
				service.WithArtifactInfo(
					artifact.Info{Kind: artifact.KindTransformer, ID: uuid.New()},
					artifact.Info{Kind: artifact.KindModel, ID: uuid.New()},
				),
				service.WithCache(mem),
			)
			So(svc.Start(ctx), ShouldBeNil)
			return svc
		}
		first := &stubClassifier{label: 0, proba: []float64{0.7, 0.3}}
		second := &stubClassifier{label: 1, proba: []float64{0.1, 0.9}}
		a, b := newSvc(first), newSvc(second)

		Convey("When both score the same record", func() {
			ra, err := a.Predict(ctx, customer.Sample())
			So(err, ShouldBeNil)
			rb, err := b.Predict(ctx, customer.Sample())
			So(err, ShouldBeNil)

			Convey("Then the model ID should keep their cache entries apart", func() {
				So(first.calls, ShouldEqual, 1)
				So(second.calls, ShouldEqual, 1)
				So(ra.Prediction, ShouldEqual, prediction.LabelNoChurn)
				So(rb.Prediction, ShouldEqual, prediction.LabelChurn)
				So(mem.Size(), ShouldEqual, 2)
			})

			Convey("Then the recorded artifact info should be reported", func() {
				_, model := a.Artifacts()
				So(model.Kind, ShouldEqual, artifact.KindModel)
				_, other := b.Artifacts()
				So(model.ID, ShouldNotEqual, other.ID)
			})
		})
	})

	Convey("Given a service whose cache backend is down", t, func() {
		fc := &failingCache{}
		svc := service.New(
			service.WithTransformer(stubTransformer{}),
			service.WithClassifier(&stubClassifier{label: 1, proba: []float64{0.2, 0.8}}),
			service.WithCache(fc),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When a record is submitted", func() {
			errs, misses := cacheLookups(metrics.CacheError), cacheLookups(metrics.CacheMiss)
			res, err := svc.Predict(ctx, customer.Sample())

			Convey("Then the prediction should still be served", func() {
				So(err, ShouldBeNil)
				So(res.Prediction, ShouldEqual, prediction.LabelChurn)
				So(fc.sets, ShouldEqual, 1)
			})

			Convey("Then the lookup should count as an error and not a miss", func() {
				So(cacheLookups(metrics.CacheError), ShouldEqual, errs+1)
				So(cacheLookups(metrics.CacheMiss), ShouldEqual, misses)
			})
		})
	})
}

func TestService_RealArtifacts(t *testing.T) {
	Convey("Given a service over fitted artifacts", t, func() {
		ctx := context.Background()
		p, clf, err := mltest.Fit(ctx, 200, 3)
		So(err, ShouldBeNil)
		svc := service.New(service.WithTransformer(p), service.WithClassifier(clf))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then the sample record should yield a valid result", func() {
			res, err := svc.Predict(ctx, customer.Sample())
			So(err, ShouldBeNil)
			So([]string{prediction.LabelChurn, prediction.LabelNoChurn}, ShouldContain, res.Prediction)
			So(res.Probability.Churn+res.Probability.NoChurn, ShouldAlmostEqual, 1.0, 1e-3)
		})

		Convey("Then an unseen category should still predict", func() {
			rec := customer.Sample()
			rec.PaymentMethod = "Crypto"
			_, err := svc.Predict(ctx, rec)
			So(err, ShouldBeNil)
		})

		Convey("Then stats should describe the artifacts", func() {
			stats := svc.GetStats()
			So(stats["estimators"], ShouldEqual, 10)
			So(stats["features"], ShouldEqual, p.Width())
		})
	})
}
