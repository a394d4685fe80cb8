package sentinel

import "errors"

// Infrastructure facts returned by stores and remote clients. Callers wrap
// them with fmt.Errorf("...: %w") and services translate them into
// domain-errors codes:
// - ErrNotFound: the record or remote resource does not exist
// - ErrConflict: a storage constraint rejected the write
// - ErrInvalidState: the record exists but is not in the state the caller required
// - ErrUnavailable: a dependency could not be reached or timed out
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
