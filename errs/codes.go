package errs

// Binance futures error codes referenced by the pipeline.
const (
	CodeDisconnected        = -1001
	CodeTooManyRequests     = -1003
	CodeTimeout             = -1007
	CodeTimestampOutOfRange = -1021
	CodeInvalidSignature    = -1022
	CodeBadSymbol           = -1121
	CodeCancelRejected      = -2011
	CodeNoSuchOrder         = -2013
	CodeRejectedAPIKey      = -2015
)

// unrecoverableCodes lists request-shape and credential errors: resending the same
// request can only fail again. Every other code defaults to recoverable.
var unrecoverableCodes = map[int]struct{}{
	-1100: {}, // illegal characters in parameter
	-1101: {}, // too many parameters
	-1102: {}, // mandatory parameter missing
	-1103: {}, // unknown parameter
	-1104: {}, // unread parameters
	-1105: {}, // empty parameter
	-1106: {}, // parameter not required
	-1111: {}, // bad precision
	-1112: {}, // no depth
	-1114: {}, // tif not required
	-1115: {}, // invalid tif
	-1116: {}, // invalid order type
	-1117: {}, // invalid side
	-1121: {}, // bad symbol
	-1128: {}, // invalid parameter combination
	-1130: {}, // invalid parameter value
	-1022: {}, // invalid signature
	-2014: {}, // bad api key format
	-2015: {}, // rejected api key or permissions
	-4003: {}, // quantity less than zero
	-4014: {}, // price not increased by tick size
	-4023: {}, // qty not increased by step size
}

// IsUnrecoverableCode reports whether the exchange error code must never be retried.
func IsUnrecoverableCode(code int) bool {
	_, ok := unrecoverableCodes[code]
	return ok
}
