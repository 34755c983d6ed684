package api

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// HTTP header names.
const (
	// HeaderCaller carries the authenticated principal, set by the gateway.
	HeaderCaller    = "X-Caller"
	HeaderRequestID = "X-Request-ID"
)

// CallerFromRequest parses the X-Caller header.
func CallerFromRequest(r *http.Request) (common.Address, error) {
	v := r.Header.Get(HeaderCaller)
	if v == "" {
		return common.Address{}, fmt.Errorf("%w: %s header missing", ErrMissingCaller, HeaderCaller)
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%w: invalid %s value %q", ErrMissingCaller, HeaderCaller, v)
	}
	addr := common.HexToAddress(v)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", ErrMissingCaller)
	}
	return addr, nil
}

// requestID returns the inbound request id when it is a uuid and a fresh one
// otherwise.
func requestID(r *http.Request) string {
	if v := r.Header.Get(HeaderRequestID); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}
