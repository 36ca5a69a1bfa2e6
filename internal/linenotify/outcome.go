package linenotify

import "net/http"

// Outcome classifies a notify response
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeBadRequest   Outcome = "bad request"
	OutcomeInvalidToken Outcome = "invalid access token"
	OutcomeServerError  Outcome = "server error"
	OutcomeRetryLater   Outcome = "retry later or abort"
)

// Classify maps a LINE Notify status code to an Outcome
func Classify(status int) Outcome {
	switch status {
	case http.StatusOK:
		return OutcomeSuccess
	case http.StatusBadRequest:
		return OutcomeBadRequest
	case http.StatusUnauthorized:
		return OutcomeInvalidToken
	case http.StatusInternalServerError:
		return OutcomeServerError
	default:
		return OutcomeRetryLater
	}
}
