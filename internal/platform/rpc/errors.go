package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	apperrors "github.com/louisbranch/depths.social/internal/platform/errors"
)

// Wire error codes shared with the remote services. The -32000 range is
// reserved for application errors per JSON-RPC 2.0.
const (
	CodeInvalidParams      = -32602
	CodeInternal           = -32000
	CodeUnauthenticated    = -32001
	CodeNotFound           = -32003
	CodeFailedPrecondition = -32004
	CodeUnavailable        = -32099
)

type wireErrorData struct {
	Reason string `json:"reason,omitempty"`
}

func mapWireError(service, method string, werr *wireError) error {
	if werr == nil {
		return nil
	}
	message := werr.Message
	if message == "" {
		message = fmt.Sprintf("%s service rejected %s", service, method)
	}
	switch werr.Code {
	case CodeInvalidParams:
		return apperrors.E(apperrors.KindInvalidInput, message)
	case CodeUnauthenticated:
		return apperrors.E(apperrors.KindUnauthenticated, message)
	case CodeNotFound:
		return apperrors.E(apperrors.KindNotFound, message)
	case CodeFailedPrecondition:
		return apperrors.EC(apperrors.KindBusinessRule, wireReason(werr.Data), message)
	case CodeUnavailable:
		return apperrors.E(apperrors.KindUnavailable, message)
	default:
		return apperrors.E(apperrors.KindUnknown, message)
	}
}

func wireReason(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var decoded wireErrorData
	if err := json.Unmarshal(data, &decoded); err != nil {
		return ""
	}
	return decoded.Reason
}

func mapTransportError(service string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.E(apperrors.KindUnavailable,
			fmt.Sprintf("%s service timed out", service))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.E(apperrors.KindUnavailable,
			fmt.Sprintf("%s service timed out", service))
	}
	return apperrors.E(apperrors.KindUnavailable,
		fmt.Sprintf("%s service is unreachable", service))
}
