package errors

import (
	"net/http"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeValidation         ErrorCode = "COMMON_006"
	ErrCodeSerialization      ErrorCode = "COMMON_007"
	ErrCodeDatabaseError      ErrorCode = "COMMON_008"
	ErrCodeCacheError         ErrorCode = "COMMON_009"
	ErrCodeExternalService    ErrorCode = "COMMON_010"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_011"
	ErrCodeNotImplemented     ErrorCode = "COMMON_012"
)

// Aliases used throughout call sites for readability.
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeValidation     = ErrCodeValidation
	CodeNotImplemented = ErrCodeNotImplemented
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrorCode("UNKNOWN")

	// Domain specific aliases
	CodeFileNotFound       = ErrCodeFileNotFound
	CodeAnnotationFailed   = ErrCodeAnnotationFailed
	CodeDuplicateRecord    = ErrCodeAnnotationDuplicate
	CodeConfigurationError = ErrCodeDictionaryOpenFailed
)

// Dictionary Store Error Codes
const (
	// ErrCodeDictionaryOpenFailed is fatal at service start: one or more of the
	// required category environments could not be opened.
	ErrCodeDictionaryOpenFailed   ErrorCode = "DICT_001"
	ErrCodeDictionaryClosed       ErrorCode = "DICT_002"
	ErrCodeDictionaryDecodeFailed ErrorCode = "DICT_003"
	ErrCodeDictionaryBadCategory  ErrorCode = "DICT_004"
)

// Annotation Pipeline Error Codes
const (
	ErrCodeAnnotationFailed          ErrorCode = "ANN_001"
	ErrCodeAnnotationMethodInvalid   ErrorCode = "ANN_002"
	ErrCodeTokenSourceFailed         ErrorCode = "ANN_003"
	ErrCodeAnnotationDuplicate       ErrorCode = "ANN_004"
	ErrCodeAnnotationPayloadInvalid  ErrorCode = "ANN_005"
	ErrCodeAnnotationTermTooLong     ErrorCode = "ANN_006"
	ErrCodeAnnotationTermTooShort    ErrorCode = "ANN_007"
	ErrCodeAnnotationTermCommonWord  ErrorCode = "ANN_008"
	ErrCodeAnnotationTermNotLexical  ErrorCode = "ANN_009"
	ErrCodeAnnotationTermAbbrev      ErrorCode = "ANN_010"
	ErrCodeEnrichmentTableInvalid    ErrorCode = "ANN_011"
	ErrCodeAnnotationOffsetCorrupted ErrorCode = "ANN_012"
)

// File / Persistence Error Codes
const (
	ErrCodeFileNotFound        ErrorCode = "FILE_001"
	ErrCodeFileContentMissing  ErrorCode = "FILE_002"
	ErrCodeAnnotationVersioning ErrorCode = "FILE_003"
	ErrCodeGlobalListFailed    ErrorCode = "FILE_004"
)

// Knowledge Graph / Organism Resolver Error Codes
const (
	ErrCodeGraphQueryFailed   ErrorCode = "KG_001"
	ErrCodeOrganismUnresolved ErrorCode = "KG_002"
)

// Short names the storage and search layers wrap their driver errors with.
const (
	CodeDBConnectionError = ErrCodeDatabaseError
	CodeDBQueryError      = ErrCodeDatabaseError
	CodeSearchError       = ErrCodeExternalService
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeDictionaryOpenFailed:   http.StatusInternalServerError,
	ErrCodeDictionaryClosed:       http.StatusInternalServerError,
	ErrCodeDictionaryDecodeFailed: http.StatusInternalServerError,
	ErrCodeDictionaryBadCategory:  http.StatusBadRequest,

	ErrCodeAnnotationFailed:          http.StatusInternalServerError,
	ErrCodeAnnotationMethodInvalid:   http.StatusBadRequest,
	ErrCodeTokenSourceFailed:         http.StatusBadGateway,
	ErrCodeAnnotationDuplicate:       http.StatusBadRequest,
	ErrCodeAnnotationPayloadInvalid:  http.StatusUnprocessableEntity,
	ErrCodeAnnotationTermTooLong:     http.StatusBadRequest,
	ErrCodeAnnotationTermTooShort:    http.StatusBadRequest,
	ErrCodeAnnotationTermCommonWord:  http.StatusBadRequest,
	ErrCodeAnnotationTermNotLexical:  http.StatusBadRequest,
	ErrCodeAnnotationTermAbbrev:      http.StatusBadRequest,
	ErrCodeEnrichmentTableInvalid:    http.StatusBadRequest,
	ErrCodeAnnotationOffsetCorrupted: http.StatusInternalServerError,

	ErrCodeFileNotFound:         http.StatusNotFound,
	ErrCodeFileContentMissing:   http.StatusNotFound,
	ErrCodeAnnotationVersioning: http.StatusInternalServerError,
	ErrCodeGlobalListFailed:     http.StatusInternalServerError,

	ErrCodeGraphQueryFailed:   http.StatusInternalServerError,
	ErrCodeOrganismUnresolved: http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status for the code, falling back to 500 for
// codes that have no explicit mapping.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := ErrorCodeHTTPStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}
