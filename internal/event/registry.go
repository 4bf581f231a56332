package event

// Kind enumerates the onboarding flows this client knows how to present.
// Backend-defined names the client has no flow for resolve to
// KindUnsupported and are skipped, so new server-side events never break
// older clients.
type Kind int

const (
	KindUnsupported Kind = iota
	KindGuidance
	KindSurvey
)

func (k Kind) String() string {
	switch k {
	case KindGuidance:
		return "guidance"
	case KindSurvey:
		return "survey"
	default:
		return "unsupported"
	}
}

// Registry maps catalog event names to handler kinds.
type Registry struct {
	kinds map[string]Kind
}

func NewRegistry() *Registry {
	return &Registry{kinds: map[string]Kind{}}
}

// DefaultRegistry lists the flows the client currently ships.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("Event_Guidance", KindGuidance)
	return r
}

func (r *Registry) Register(name string, kind Kind) {
	r.kinds[name] = kind
}

// Resolve never fails: unknown names are the KindUnsupported variant.
func (r *Registry) Resolve(name string) Kind {
	if k, ok := r.kinds[name]; ok {
		return k
	}
	return KindUnsupported
}
