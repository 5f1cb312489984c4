package wire

// Envelope wraps every response body. Error is set instead of Data on failure.
type Envelope[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error,omitempty"`
}
