package events

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/retouch/retouch/internal/document"
)

// SessionState holds the last annotation document any tab of a session
// reported, so a newly opened tab starts from the same regions.
type SessionState struct {
	mu  sync.RWMutex
	doc *document.InDocument
}

func NewSessionState() *SessionState {
	return &SessionState{}
}

// Update stores doc unless it is older than what is already held.
func (s *SessionState) Update(doc *document.InDocument) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil && doc.Version < s.doc.Version {
		return false
	}
	s.doc = doc
	return true
}

func (s *SessionState) StateMessage() *Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil
	}

	payload, err := json.Marshal(s.doc)
	if err != nil {
		slog.Error("marshal session state", "error", err)
		return nil
	}
	return &Message{
		Type:    TypeRegionsState,
		Payload: payload,
	}
}
