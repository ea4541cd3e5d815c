package sse

// Selector is the routing predicate resolved against the registry. Zero or
// one of ConnectionID / (UserID, SessionID) narrows the primary lookup; the
// zero Selector matches every open connection. Metadata, when non-empty, is
// applied as an equality post-filter after the primary lookup.
type Selector struct {
	ConnectionID string            `json:"connectionId,omitempty"`
	UserID       string            `json:"userId,omitempty"`
	SessionID    string            `json:"sessionId,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// All is the selector matching every open connection.
var All = Selector{}

// matchesMetadata reports whether the connection satisfies the selector's
// metadata predicate. Every (key, value) pair must equal-match; a connection
// with no metadata fails any non-empty predicate.
func (s Selector) matchesMetadata(c *Connection) bool {
	if len(s.Metadata) == 0 {
		return true
	}
	if len(c.metadata) == 0 {
		return false
	}
	for k, v := range s.Metadata {
		if c.metadata[k] != v {
			return false
		}
	}
	return true
}
