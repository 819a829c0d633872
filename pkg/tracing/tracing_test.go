package tracing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/churn/pkg/tracing"
	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel"
)

func TestInit(t *testing.T) {
	Convey("Given no collector endpoint", t, func() {
		shutdown, err := tracing.Init(context.Background(), tracing.WithServiceName("test"), tracing.WithSampleRate(0.5))

		Convey("Then init should succeed with a no-op shutdown", func() {
			So(err, ShouldBeNil)
			So(shutdown(context.Background()), ShouldBeNil)
			So(tracing.Tracer(), ShouldNotBeNil)
		})

		Convey("Then the tracecontext propagator should be installed", func() {
			So(otel.GetTextMapPropagator().Fields(), ShouldContain, "traceparent")
		})
	})
}

func TestInitExport(t *testing.T) {
	Convey("Given a plain HTTP collector", t, func() {
		var received atomic.Int32
		collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1/traces" {
				received.Add(1)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer collector.Close()
		endpoint := strings.TrimPrefix(collector.URL, "http://")

		export := func(opts ...tracing.Option) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			opts = append([]tracing.Option{tracing.WithEndpoint(endpoint), tracing.WithSampleRate(1)}, opts...)
			shutdown, err := tracing.Init(ctx, opts...)
			So(err, ShouldBeNil)
			_, span := tracing.Tracer().Start(ctx, "export-check")
			span.End()
			_ = shutdown(ctx)
		}

		Convey("When the exporter is insecure by default", func() {
			export()

			Convey("Then spans should reach the collector", func() {
				So(received.Load(), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When TLS is requested", func() {
			export(tracing.WithSecure())

			Convey("Then the plain collector should never see a request", func() {
				So(received.Load(), ShouldEqual, 0)
			})
		})
	})
}

func TestWrap(t *testing.T) {
	Convey("Given a wrapped handler and transport", t, func() {
		h := tracing.WrapHandler("test", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		srv := httptest.NewServer(h)
		defer srv.Close()

		client := &http.Client{Transport: tracing.WrapTransport(nil)}

		Convey("Then requests should pass through unchanged", func() {
			resp, err := client.Get(srv.URL)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusTeapot)
		})
	})
}
