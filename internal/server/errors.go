package server

import (
	"context"
	"errors"
	"osrs-tracker/internal/domain"

	"connectrpc.com/connect"
)

// toConnectError keeps the domain message as the connect error message.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUpdateFailed),
		errors.Is(err, domain.ErrInvalidFormat):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, domain.ErrImportTooSoon),
		errors.Is(err, domain.ErrTooSoon):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrPlayerNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, domain.ErrUpstreamUnavailable),
		errors.Is(err, domain.ErrHistoryUnavailable):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
