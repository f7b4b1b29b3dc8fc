// pkg/errors/gateway.go
package errors

// Gateway error codes
const (
	// GatewayErrTransport indicates a connection or timeout failure at the RPC layer
	GatewayErrTransport = "GATEWAY_TRANSPORT"
	// GatewayErrRateLimited indicates the node throttled the request
	GatewayErrRateLimited = "GATEWAY_RATE_LIMITED"
	// GatewayErrNodeUnavailable indicates the node is temporarily unavailable
	GatewayErrNodeUnavailable = "GATEWAY_NODE_UNAVAILABLE"
	// GatewayErrInsufficientFunds indicates the sender cannot cover the transfer
	GatewayErrInsufficientFunds = "GATEWAY_INSUFFICIENT_FUNDS"
	// GatewayErrInvalidSignature indicates the node rejected the payload signature
	GatewayErrInvalidSignature = "GATEWAY_INVALID_SIGNATURE"
	// GatewayErrMalformedTransaction indicates the node could not decode the payload
	GatewayErrMalformedTransaction = "GATEWAY_MALFORMED_TRANSACTION"
	// GatewayErrAlreadyProcessed indicates the node has already processed this transaction
	GatewayErrAlreadyProcessed = "GATEWAY_ALREADY_PROCESSED"
	// GatewayErrRPC indicates a generic RPC-level failure
	GatewayErrRPC = "GATEWAY_RPC"
)

// Gateway domain name
const GatewayDomain = "gateway"

// Gateway operations
const (
	OpSubmit     = "Submit"
	OpGetStatus  = "GetStatus"
	OpGetBalance = "GetBalance"
)

// NewGatewayError creates a new gateway error
func NewGatewayError(code string, message string, err error) error {
	return &Error{
		Domain:   GatewayDomain,
		Code:     code,
		Message:  message,
		Original: err,
	}
}

// GatewayErrorf creates a new gateway error with formatted message
func GatewayErrorf(code string, format string, args ...interface{}) error {
	return &Error{
		Domain:  GatewayDomain,
		Code:    code,
		Message: Sprintf(format, args...),
	}
}

// GatewayWrap wraps an error with gateway domain
func GatewayWrap(err error, operation string, message string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Domain:    GatewayDomain,
		Operation: operation,
		Message:   message,
		Original:  err,
	}
}

// IsGatewayError checks if an error is a gateway error with the given code
func IsGatewayError(err error, code string) bool {
	var domainErr *Error
	if As(err, &domainErr) {
		return domainErr.Domain == GatewayDomain && domainErr.Code == code
	}
	return false
}
