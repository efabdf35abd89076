package images

import "fmt"

// DownloadError reports a remote image fetch that came back with a
// non-success HTTP status.
type DownloadError struct {
	URL    string
	Status int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading %s: unexpected status %d", e.URL, e.Status)
}

// TransportError reports a network or filesystem failure while fetching
// or storing a remote image.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
