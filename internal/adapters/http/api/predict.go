package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/pkg/logger"
	"github.com/okian/churn/pkg/metrics"
)

const maxBodyBytes = 1 << 20

// validationResponse lists every schema issue of a rejected body.
type validationResponse struct {
	Detail []customer.Issue `json:"detail"`
}

// PredictHandler handles POST /predict.
type PredictHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps Dependencies, l logger.Logger) *PredictHandler {
	return &PredictHandler{deps: deps, logger: l}
}

// HandlePredict validates the body against the customer schema and returns
// the prediction. Schema failures are 422 with per-field detail; failures
// after validation are 500 with no internal detail.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordValidationFailure()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", WrapKind("predict", ErrValidation, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind("predict", ErrValidation, err))
		return
	}

	rec, err := customer.Decode(body)
	if err != nil {
		metrics.RecordValidationFailure()
		var verr *customer.ValidationError
		if errors.As(err, &verr) {
			h.logger.Info(ctx, "prediction request rejected",
				logger.String("requestID", RequestIDFromContext(ctx)),
				logger.Int("issues", len(verr.Issues)),
				logger.Error(err),
			)
			writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Detail: verr.Issues})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "validation_error", WrapKind("predict", ErrValidation, err))
		return
	}

	res, err := h.deps.Predict(ctx, rec)
	if err != nil {
		h.logger.Error(ctx, "prediction failed",
			logger.String("requestID", RequestIDFromContext(ctx)),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "processing_failed", WrapKind("predict", ErrProcessing, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
