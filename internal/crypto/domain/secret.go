package domain

// Secret wraps a sensitive byte buffer (a password, a master key, a root
// key) so that it cannot be printed, logged, or copied by accident. Callers
// must call Close once the secret is no longer needed, which overwrites the
// buffer with zeros.
//
// Secret deliberately has no exported fields and no Clone method: the only
// way to reach the plaintext is Expose, and every caller of Expose is
// expected to treat the returned slice as borrowed, not owned.
type Secret struct {
	b []byte
}

// NewSecret takes ownership of b and returns it wrapped in a Secret. The
// caller must not use b directly after this call.
func NewSecret(b []byte) *Secret {
	return &Secret{b: b}
}

// Expose returns the underlying byte slice. The returned slice aliases the
// Secret's internal buffer and becomes invalid once Close is called.
func (s *Secret) Expose() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

// Len returns the length of the wrapped secret.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.b)
}

// Close zeroizes the underlying buffer. It is safe to call multiple times
// and safe to call on a nil Secret.
func (s *Secret) Close() {
	if s == nil {
		return
	}
	Zero(s.b)
}

// String implements fmt.Stringer so that accidental use of a Secret in a
// log line or error message never leaks its contents.
func (s *Secret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for the same reason as String.
func (s *Secret) GoString() string {
	return "domain.Secret{[REDACTED]}"
}
