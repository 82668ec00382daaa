package errors

// Dead-letter error taxonomy. Every rejected event is durably recorded with
// exactly one of these values; all four are terminal for the offending event.
const (
	DLQMissingEventType = "MISSING_EVENT_TYPE"
	DLQUnknownEventType = "UNKNOWN_EVENT_TYPE"
	DLQValidationError  = "VALIDATION_ERROR"
	DLQPipelineError    = "PIPELINE_ERROR"
)

const (
	HttpInternalError    = "internal_error"
	HttpInvalidJsonError = "invalid_json"
	HttpInvalidQuery     = "invalid_query"
	HttpEventRejected    = "event_rejected"
)

// ErrorResponse is the error response body for ingestion and query errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
