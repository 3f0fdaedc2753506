package providertest_test

import (
	"net/http"
	"net/http/httptest"
)

// roundTripRecorder serves requests in-process with handler.
type roundTripRecorder struct {
	handler http.Handler
}

func (r *roundTripRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	w := httptest.NewRecorder()
	r.handler.ServeHTTP(w, req)
	return w.Result(), nil
}
