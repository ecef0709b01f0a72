package types

// Metadata is a key-value store for provider-specific passthrough data and
// audit context. Known configuration (trial days, proration markers) lives in
// typed fields, never in here.
type Metadata map[string]string
