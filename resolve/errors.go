package resolve

import "errors"

// Sentinel errors returned by the resolver.
var (
	ErrNoMatch  = errors.New("resolve: no version satisfies the requested range")
	ErrMetadata = errors.New("resolve: registry metadata error")
	ErrCycle    = errors.New("resolve: workspace participates in an unsatisfiable cycle")
)
