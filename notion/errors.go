package notion

import "fmt"

// APIError is a non-retryable rejection from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion API error: %s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("notion API error: status %d", e.Status)
}

// ChildFetchError marks a failure to load nested blocks, keeping the parent
// block identity for diagnostics.
type ChildFetchError struct {
	BlockID string
	Err     error
}

func (e *ChildFetchError) Error() string {
	return fmt.Sprintf("fetching children of block %s: %v", e.BlockID, e.Err)
}

func (e *ChildFetchError) Unwrap() error {
	return e.Err
}
