package aiprovider

import "context"

// Request describes one image to produce. ReferenceImages are raw bytes the
// vendor should condition on (user selfie or a prior generation for edits).
type Request struct {
	Prompt          string
	AspectRatio     string
	Resolution      string
	ReferenceImages [][]byte
}

// Provider wraps one external image-generation vendor. Implementations
// return the raw bytes of a single generated image or fail; they never
// touch storage or the ledger.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// Registry maps AI model ids to the provider serving them.
type Registry map[string]Provider
