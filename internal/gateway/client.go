// internal/gateway/client.go
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cmatc13/txpilot/pkg/errors"
)

// Client is a JSON-RPC 2.0 client for a ledger node's HTTP endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	requestID  atomic.Uint64
}

// NewClient creates a new gateway client for the given RPC URL.
func NewClient(rpcURL string, requestTimeout time.Duration) *Client {
	return &Client{
		url: rpcURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// statusResult mirrors the node's status response shape.
type statusResult struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Submit implements Gateway.
func (c *Client) Submit(ctx context.Context, payload []byte) (string, error) {
	var fingerprint string
	encoded := base64.StdEncoding.EncodeToString(payload)
	if err := c.call(ctx, errors.OpSubmit, "sendTransaction", []interface{}{encoded}, &fingerprint); err != nil {
		return "", err
	}
	if fingerprint == "" {
		return "", errors.NewGatewayError(errors.GatewayErrRPC, "node returned an empty fingerprint", nil)
	}
	return fingerprint, nil
}

// GetStatus implements Gateway.
func (c *Client) GetStatus(ctx context.Context, fingerprint string) (Status, error) {
	var result statusResult
	if err := c.call(ctx, errors.OpGetStatus, "getTransactionStatus", []interface{}{fingerprint}, &result); err != nil {
		return Status{}, err
	}

	switch strings.ToLower(result.Status) {
	case "confirmed", "finalized":
		return Status{State: StateConfirmed}, nil
	case "failed":
		return Status{State: StateFailed, Reason: result.Reason}, nil
	default:
		return Status{State: StatePending}, nil
	}
}

// GetBalance implements Gateway.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	var balance uint64
	if err := c.call(ctx, errors.OpGetBalance, "getBalance", []interface{}{address}, &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// Ping checks that the node answers RPC requests.
func (c *Client) Ping(ctx context.Context) error {
	var result string
	return c.call(ctx, "Ping", "getHealth", nil, &result)
}

func (c *Client) call(ctx context.Context, operation, method string, params []interface{}, result interface{}) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.GatewayWrap(err, operation, "failed to encode request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return errors.GatewayWrap(err, operation, "failed to build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &errors.Error{
			Domain:    errors.GatewayDomain,
			Operation: operation,
			Code:      errors.GatewayErrTransport,
			Message:   fmt.Sprintf("request to %s failed", c.url),
			Original:  err,
		}
	}
	defer httpResp.Body.Close()

	if code := httpStatusCode(httpResp.StatusCode); code != "" {
		return errors.GatewayErrorf(code, "node returned HTTP %d", httpResp.StatusCode)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &errors.Error{
			Domain:    errors.GatewayDomain,
			Operation: operation,
			Code:      errors.GatewayErrTransport,
			Message:   "failed to read response body",
			Original:  err,
		}
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return errors.GatewayWrap(err, operation, "failed to decode response")
	}

	if resp.Error != nil {
		return &errors.Error{
			Domain:    errors.GatewayDomain,
			Operation: operation,
			Code:      classifyRPCError(resp.Error),
			Message:   resp.Error.Message,
			Fields:    map[string]interface{}{"rpc_code": resp.Error.Code},
		}
	}

	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return errors.GatewayWrap(err, operation, "failed to decode result")
		}
	}

	return nil
}

func httpStatusCode(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return errors.GatewayErrRateLimited
	case status >= 500:
		return errors.GatewayErrNodeUnavailable
	case status >= 400:
		return errors.GatewayErrRPC
	default:
		return ""
	}
}

// classifyRPCError maps a node error to a machine-readable gateway code.
// Nodes are not consistent about numeric codes, so the message is matched too.
func classifyRPCError(rpcErr *rpcError) string {
	msg := strings.ToLower(rpcErr.Message)

	switch {
	case strings.Contains(msg, "already processed"),
		strings.Contains(msg, "already known"),
		strings.Contains(msg, "duplicate transaction"):
		return errors.GatewayErrAlreadyProcessed
	case strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "insufficient balance"):
		return errors.GatewayErrInsufficientFunds
	case strings.Contains(msg, "invalid signature"),
		strings.Contains(msg, "signature verification"):
		return errors.GatewayErrInvalidSignature
	case strings.Contains(msg, "malformed"),
		strings.Contains(msg, "failed to deserialize"),
		strings.Contains(msg, "invalid transaction"):
		return errors.GatewayErrMalformedTransaction
	case strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "rate limit"):
		return errors.GatewayErrRateLimited
	case strings.Contains(msg, "node is behind"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "service busy"):
		return errors.GatewayErrNodeUnavailable
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "socket closed"),
		strings.Contains(msg, "connection closed"):
		return errors.GatewayErrTransport
	default:
		return errors.GatewayErrRPC
	}
}
