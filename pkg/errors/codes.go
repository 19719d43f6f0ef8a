package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are prefixed by module: COMMON_ (cross-cutting), RPT_ (report
// lifecycle), SIM_ (similarity index), QLT_ (quality scoring), AID_
// (AI-authorship detection), CMP_ (compliance scanning).
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeValidation         ErrorCode = "COMMON_007"
	ErrCodeDatabaseError      ErrorCode = "COMMON_008"
	ErrCodeCacheError         ErrorCode = "COMMON_009"
	ErrCodeExternalService    ErrorCode = "COMMON_010"
	ErrCodeComputationTimeout ErrorCode = "COMMON_011"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_012"

	ErrCodeOK      ErrorCode = "OK"
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// Report module error codes.
const (
	ErrCodeReportNotFound       ErrorCode = "RPT_001"
	ErrCodeReportAlreadyExists  ErrorCode = "RPT_002"
	ErrCodeReportRetracted      ErrorCode = "RPT_003"
	ErrCodeReportStateInvalid   ErrorCode = "RPT_004"
	ErrCodeAssessmentNotFound   ErrorCode = "RPT_005"
	ErrCodeAssessmentInProgress ErrorCode = "RPT_006"
)

// Similarity module error codes.
const (
	ErrCodeEmbeddingFailed      ErrorCode = "SIM_001"
	ErrCodeIndexConsistency     ErrorCode = "SIM_002"
	ErrCodeSimilaritySearchFail ErrorCode = "SIM_003"
	ErrCodeDimensionMismatch    ErrorCode = "SIM_004"
)

// Quality module error codes.
const (
	ErrCodeDimensionUnavailable ErrorCode = "QLT_001"
	ErrCodeWeightsInvalid       ErrorCode = "QLT_002"
	ErrCodeMarketDataFailed     ErrorCode = "QLT_003"
)

// AI-detection module error codes.
const (
	ErrCodeDetectorInputTooShort ErrorCode = "AID_001"
	ErrCodeThresholdsInvalid     ErrorCode = "AID_002"
)

// Compliance module error codes.
const (
	ErrCodeChecklistInvalid ErrorCode = "CMP_001"
	ErrCodeRegionUnknown    ErrorCode = "CMP_002"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeComputationTimeout: http.StatusGatewayTimeout,
	ErrCodeMessageQueueError:  http.StatusInternalServerError,

	ErrCodeReportNotFound:       http.StatusNotFound,
	ErrCodeReportAlreadyExists:  http.StatusConflict,
	ErrCodeReportRetracted:      http.StatusGone,
	ErrCodeReportStateInvalid:   http.StatusConflict,
	ErrCodeAssessmentNotFound:   http.StatusNotFound,
	ErrCodeAssessmentInProgress: http.StatusConflict,

	ErrCodeEmbeddingFailed:      http.StatusBadGateway,
	ErrCodeIndexConsistency:     http.StatusInternalServerError,
	ErrCodeSimilaritySearchFail: http.StatusInternalServerError,
	ErrCodeDimensionMismatch:    http.StatusInternalServerError,

	ErrCodeDimensionUnavailable: http.StatusInternalServerError,
	ErrCodeWeightsInvalid:       http.StatusBadRequest,
	ErrCodeMarketDataFailed:     http.StatusBadGateway,

	ErrCodeDetectorInputTooShort: http.StatusUnprocessableEntity,
	ErrCodeThresholdsInvalid:     http.StatusBadRequest,

	ErrCodeChecklistInvalid: http.StatusInternalServerError,
	ErrCodeRegionUnknown:    http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeValidation:         "validation failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeComputationTimeout: "computation deadline exceeded",
	ErrCodeMessageQueueError:  "message queue error",

	ErrCodeReportNotFound:       "report not found",
	ErrCodeReportAlreadyExists:  "report already exists",
	ErrCodeReportRetracted:      "report has been retracted",
	ErrCodeReportStateInvalid:   "invalid report lifecycle transition",
	ErrCodeAssessmentNotFound:   "assessment not found",
	ErrCodeAssessmentInProgress: "assessment already in progress",

	ErrCodeEmbeddingFailed:      "embedding computation failed",
	ErrCodeIndexConsistency:     "similarity index write conflict",
	ErrCodeSimilaritySearchFail: "similarity search failed",
	ErrCodeDimensionMismatch:    "embedding dimension mismatch",

	ErrCodeDimensionUnavailable: "quality dimension unavailable",
	ErrCodeWeightsInvalid:       "dimension weights do not sum to 1.0",
	ErrCodeMarketDataFailed:     "market data lookup failed",

	ErrCodeDetectorInputTooShort: "text too short for authorship analysis",
	ErrCodeThresholdsInvalid:     "detector thresholds invalid",

	ErrCodeChecklistInvalid: "compliance checklist misconfigured",
	ErrCodeRegionUnknown:    "unknown geopolitical region",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
