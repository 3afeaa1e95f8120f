package httpclient

import (
	"net/http"
	"net/http/httptest"
)

// HandlerDoer serves requests in-process with h and records the response, so
// clients can be exercised without opening sockets.
func HandlerDoer(h http.Handler) Doer {
	return DoerFunc(func(req *http.Request) (*http.Response, error) {
		if err := req.Context().Err(); err != nil {
			return nil, err
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Result(), nil
	})
}
