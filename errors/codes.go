package errors

// ErrorCode identifies a class of application error
type ErrorCode int

const (
	ErrorCode_HTTP_OK ErrorCode = iota
	ErrorCode_INTERNAL
	ErrorCode_INVALID_ARGUMENT
	ErrorCode_NOT_FOUND
	ErrorCode_ALREADY_EXISTS
	ErrorCode_INVALID_PAYLOAD

	// Evidence handling
	ErrorCode_INTEGRITY_FAILED
	ErrorCode_EVIDENCE_UNREADABLE
	ErrorCode_DIGEST_MISMATCH

	// Pipeline capabilities
	ErrorCode_CAPABILITY_UNAVAILABLE
	ErrorCode_INPUT_MALFORMED

	// Run lifecycle
	ErrorCode_RUN_NOT_FOUND
	ErrorCode_RUN_NOT_COMPLETE
	ErrorCode_RUN_NOT_CANCELLABLE
	ErrorCode_SUBMISSION_FAILED

	// Report and exports
	ErrorCode_REPORT_NOT_FOUND
	ErrorCode_EXPORT_FAILED

	// Integrations
	ErrorCode_INTEGRATION_STORAGE_FAILED
	ErrorCode_INTEGRATION_CACHE_FAILED
	ErrorCode_INTEGRATION_ENGINE_FAILED

	// Database
	ErrorCode_DB_CONNECTION_FAILED
	ErrorCode_DB_QUERY_FAILED
)

// String returns the symbolic name of the error code
func (c ErrorCode) String() string {
	switch c {
	case ErrorCode_HTTP_OK:
		return "OK"
	case ErrorCode_INTERNAL:
		return "INTERNAL"
	case ErrorCode_INVALID_ARGUMENT:
		return "INVALID_ARGUMENT"
	case ErrorCode_NOT_FOUND:
		return "NOT_FOUND"
	case ErrorCode_ALREADY_EXISTS:
		return "ALREADY_EXISTS"
	case ErrorCode_INVALID_PAYLOAD:
		return "INVALID_PAYLOAD"
	case ErrorCode_INTEGRITY_FAILED:
		return "INTEGRITY_FAILED"
	case ErrorCode_EVIDENCE_UNREADABLE:
		return "EVIDENCE_UNREADABLE"
	case ErrorCode_DIGEST_MISMATCH:
		return "DIGEST_MISMATCH"
	case ErrorCode_CAPABILITY_UNAVAILABLE:
		return "CAPABILITY_UNAVAILABLE"
	case ErrorCode_INPUT_MALFORMED:
		return "INPUT_MALFORMED"
	case ErrorCode_RUN_NOT_FOUND:
		return "RUN_NOT_FOUND"
	case ErrorCode_RUN_NOT_COMPLETE:
		return "RUN_NOT_COMPLETE"
	case ErrorCode_RUN_NOT_CANCELLABLE:
		return "RUN_NOT_CANCELLABLE"
	case ErrorCode_SUBMISSION_FAILED:
		return "SUBMISSION_FAILED"
	case ErrorCode_REPORT_NOT_FOUND:
		return "REPORT_NOT_FOUND"
	case ErrorCode_EXPORT_FAILED:
		return "EXPORT_FAILED"
	case ErrorCode_INTEGRATION_STORAGE_FAILED:
		return "INTEGRATION_STORAGE_FAILED"
	case ErrorCode_INTEGRATION_CACHE_FAILED:
		return "INTEGRATION_CACHE_FAILED"
	case ErrorCode_INTEGRATION_ENGINE_FAILED:
		return "INTEGRATION_ENGINE_FAILED"
	case ErrorCode_DB_CONNECTION_FAILED:
		return "DB_CONNECTION_FAILED"
	case ErrorCode_DB_QUERY_FAILED:
		return "DB_QUERY_FAILED"
	default:
		return "UNKNOWN"
	}
}
