package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"campusdrive/internal/common"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// decodeAndValidate parses the JSON body into dst and runs struct validation.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.Errorf("malformed request body: %w", common.ErrBadRequest)
	}
	if err := validate.Struct(dst); err != nil {
		return common.Errorf("%v: %w", err, common.ErrValidation)
	}
	return nil
}

// respondServiceError maps a service error onto the HTTP response, attaching
// the retry hint for gate denials.
func respondServiceError(w http.ResponseWriter, err error) {
	status := common.HTTPStatusFromError(err)

	var gateErr *common.GateError
	if errors.As(err, &gateErr) {
		if gateErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(gateErr.RetryAfter))
		}
		common.RespondWithJSON(w, status, common.ErrorResponse{
			Error:            gateErr.Reason,
			RetryAfterSecond: gateErr.RetryAfter,
		})
		return
	}

	common.RespondWithError(w, status, err.Error())
}
