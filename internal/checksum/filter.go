package checksum

// Scope names the byte range a running checksum covers.
type Scope int

const (
	// ScopeFile covers every byte from the start of the file.
	ScopeFile Scope = iota
	// ScopeFrame covers a frame body, from the first byte of its frame
	// header up to the end-of-frame checksum field.
	ScopeFrame
	// ScopeStruct covers one structure up to its trailing checksum.
	ScopeStruct
	numScopes

	// ScopeHeader names the 40-byte file header. It is computed in one
	// piece and never runs through a Filter.
	ScopeHeader Scope = numScopes
)

func (s Scope) String() string {
	switch s {
	case ScopeFile:
		return "file"
	case ScopeFrame:
		return "frame"
	case ScopeStruct:
		return "structure"
	case ScopeHeader:
		return "header"
	default:
		return "unknown"
	}
}

// Filter observes a byte stream and maintains one digest per active scope.
// Bytes written while a scope is inactive do not contribute to it.
type Filter struct {
	digests [numScopes]Digest
	active  [numScopes]bool
}

// NewFilter returns a filter with the given scopes active.
func NewFilter(scopes ...Scope) *Filter {
	f := &Filter{}
	for _, s := range scopes {
		f.Begin(s)
	}
	return f
}

// Begin resets and activates a scope.
func (f *Filter) Begin(s Scope) {
	f.digests[s].Reset()
	f.active[s] = true
}

// End deactivates a scope and returns its checksum.
func (f *Filter) End(s Scope) uint32 {
	f.active[s] = false
	return f.digests[s].Sum32()
}

// Active reports whether s is collecting bytes.
func (f *Filter) Active(s Scope) bool { return f.active[s] }

// Value returns the current checksum of s without ending it.
func (f *Filter) Value(s Scope) uint32 { return f.digests[s].Sum32() }

// Write feeds p to every active scope. It never fails.
func (f *Filter) Write(p []byte) (int, error) {
	for s := range numScopes {
		if f.active[s] {
			_, _ = f.digests[s].Write(p)
		}
	}
	return len(p), nil
}
