package interceptors

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by the request ID interceptor.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewRequestIDInterceptor propagates the caller's request id from header, or assigns a
// new one, and echoes it on the response.
func NewRequestIDInterceptor(header string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			id := req.Header().Get(header)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			ctx = context.WithValue(ctx, requestIDKey{}, id)

			resp, err := next(ctx, req)
			if err != nil {
				// resp may be a typed nil here; the id travels in the error metadata.
				var connectErr *connect.Error
				if !errors.As(err, &connectErr) {
					connectErr = connect.NewError(connect.CodeOf(err), err)
					err = connectErr
				}
				connectErr.Meta().Set(header, id)
				return resp, err
			}
			resp.Header().Set(header, id)
			return resp, nil
		}
	}
}
