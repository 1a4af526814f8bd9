package httpx

import "net/http"

// Client abstracts *http.Client so dependency clients can be tested with a
// mock transport.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}
