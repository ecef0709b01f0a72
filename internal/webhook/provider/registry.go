package provider

import (
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
	"github.com/sessionlab/billing/internal/webhook/verifier"
)

// Adapter translates one provider's native webhook payloads into normalized
// events and declares how its deliveries are authenticated. Event-type
// resolution is provider-specific (header or payload field) and lives here,
// never in the processor.
type Adapter interface {
	Provider() types.PaymentProvider
	// Scheme is the signature verification strategy for the provider
	Scheme() verifier.Scheme
	// SignatureHeader is the request header carrying the signature; empty
	// for providers with SchemeNone
	SignatureHeader() string
	// Parse maps the raw body onto a normalized event. Returns ErrUnhandled
	// for native event types outside the internal taxonomy.
	Parse(body []byte) (*Event, error)
}

// Registry holds the configured provider adapters.
type Registry struct {
	adapters map[types.PaymentProvider]Adapter
}

// NewRegistry builds a registry over the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[types.PaymentProvider]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Provider()] = a
	}
	return &Registry{adapters: m}
}

// DefaultRegistry returns the registry with all supported providers.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewStripeAdapter(),
		NewRazorpayAdapter(),
		NewInternalAdapter(),
	)
}

// ForProvider returns the adapter for a provider.
func (r *Registry) ForProvider(p types.PaymentProvider) (Adapter, error) {
	adapter, ok := r.adapters[p]
	if !ok {
		return nil, ierr.NewError("unsupported webhook provider").
			WithHint("Unknown webhook provider").
			WithReportableDetails(map[string]any{
				"provider": p,
			}).
			Mark(ierr.ErrNotFound)
	}
	return adapter, nil
}
