package instance

import (
	"errors"
	"strings"
)

// =============================================================================
// Error Kinds
// =============================================================================

// ErrorKind is the closed set of failure classes the façade reports.
type ErrorKind string

const (
	// ErrorKindTransport covers failures that never produced a usable API answer
	// (network, credentials, cancellation) as well as throttling and auth rejections.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindValidation covers requests the provider rejected as malformed
	// or not applicable to the instance's current state.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindDryRunAck is the provider confirming a dry-run request would succeed.
	ErrorKindDryRunAck ErrorKind = "dry_run_ack"

	// ErrorKindUnknown is any other provider error code.
	ErrorKindUnknown ErrorKind = "unknown"
)

// IsValid checks if the kind is one of the known kinds.
func (k ErrorKind) IsValid() bool {
	switch k {
	case ErrorKindTransport, ErrorKindValidation, ErrorKindDryRunAck, ErrorKindUnknown:
		return true
	default:
		return false
	}
}

// DryRunOperationCode is the provider error code for a validated-only dry run.
const DryRunOperationCode = "DryRunOperation"

var transportCodes = map[string]bool{
	"AuthFailure":                 true,
	"UnauthorizedOperation":       true,
	"Blocked":                     true,
	"OptInRequired":               true,
	"RequestExpired":              true,
	"RequestLimitExceeded":        true,
	"Throttling":                  true,
	"ThrottlingException":         true,
	"InternalError":               true,
	"InternalFailure":             true,
	"ServiceUnavailable":          true,
	"Unavailable":                 true,
	"SignatureDoesNotMatch":       true,
	"InvalidClientTokenId":        true,
	"ExpiredToken":                true,
	"UnrecognizedClientException": true,
}

var validationCodes = map[string]bool{
	"IncorrectInstanceState": true,
	"IncorrectState":         true,
	"UnsupportedOperation":   true,
	"OperationNotPermitted":  true,
}

// ClassifyCode maps a structured provider error code onto an ErrorKind.
// An empty code means the error carried no structured code at all.
func ClassifyCode(code string) ErrorKind {
	switch {
	case code == "":
		return ErrorKindTransport
	case code == DryRunOperationCode:
		return ErrorKindDryRunAck
	case transportCodes[code]:
		return ErrorKindTransport
	case validationCodes[code],
		strings.HasPrefix(code, "Invalid"),
		strings.HasPrefix(code, "Missing"):
		return ErrorKindValidation
	default:
		return ErrorKindUnknown
	}
}

// =============================================================================
// Provider Error
// =============================================================================

// ErrInvalidInstanceID is returned when an instance id is empty.
var ErrInvalidInstanceID = errors.New("instance id is required")

// ProviderError is a classified provider failure.
type ProviderError struct {
	Kind    ErrorKind
	Code    string // structured provider code, empty for transport failures
	Message string // provider error text, verbatim
	Err     error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
