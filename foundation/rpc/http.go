package rpc

import (
	"context"
	"net/http"

	"github.com/adamwoolhether/virtualnode/foundation/web"
)

// ServePost answers a single call posted as the request body.
func (s *Server) ServePost(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	body, err := web.ReadBody(r)
	if err != nil {
		resp := s.encode(Response{Error: NewError(CodeInvalidRequest, "%s", err)})
		return web.RespondRaw(ctx, w, resp, http.StatusOK)
	}

	return web.RespondRaw(ctx, w, s.Dispatch(ctx, body), http.StatusOK)
}
