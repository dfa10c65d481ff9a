package pipeline

import "github.com/trustfulmesh/tstp/buffer"

// Authenticator is the pluggable trust policy Security defers to. The
// cryptographic handshake itself is out of scope (spec §4.5); this is
// the hook point a real implementation would occupy.
type Authenticator interface {
	// Verify reports whether buf's contents should be trusted.
	Verify(buf *buffer.Buffer) bool
}

// Security is the pipeline's trust-verification stage. With no
// Authenticator configured it is a pass-through that marks every
// buffer trusted, matching the original's empty marshal/update hook
// bodies.
type Security struct {
	Auth Authenticator
}

// Marshal marks an outbound buffer trusted; this node vouches for its
// own traffic.
func (s Security) Marshal(buf *buffer.Buffer) error {
	buf.Trusted = true
	return nil
}

// Update runs the configured Authenticator against an inbound buffer,
// or marks it trusted unconditionally if none is configured.
func (s Security) Update(buf *buffer.Buffer) error {
	if s.Auth != nil {
		buf.Trusted = s.Auth.Verify(buf)
		return nil
	}
	buf.Trusted = true
	return nil
}
