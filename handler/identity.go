package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// UserResolver extracts the authenticated user of a request.
type UserResolver interface {
	ResolveUserID(r *http.Request) (int64, error)
}

// HeaderResolver trusts a user id header set by the authenticating proxy in
// front of the service.
type HeaderResolver struct {
	Header string
}

func (h HeaderResolver) ResolveUserID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(h.Header))
	if raw == "" {
		return 0, errors.Wrapf(ErrUnauthenticated, "missing %s header", h.Header)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(ErrUnauthenticated, "invalid %s header", h.Header)
	}
	return id, nil
}
