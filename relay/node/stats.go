package node

import (
	"sync/atomic"
)

type counters struct {
	sent          atomic.Int64
	received      atomic.Int64
	duplicates    atomic.Int64
	decodeErrors  atomic.Int64
	handlerErrors atomic.Int64
	sendErrors    atomic.Int64
	timeouts      atomic.Int64
}

// Stats is a point-in-time snapshot of a node.
type Stats struct {
	Name              string `json:"name"`
	Peer              string `json:"peer"`
	ListenAddr        string `json:"listen_addr"`
	PeerURL           string `json:"peer_url"`
	InboundConnected  bool   `json:"inbound_connected"`
	OutboundConnected bool   `json:"has_client_connection"`
	LinkStatus        string `json:"link_status"`
	State             string `json:"conversation_state"`
	PendingQuestion   string `json:"pending_question,omitempty"`
	PendingQuestions  int    `json:"pending_questions"`
	CacheSize         int    `json:"cache_size"`

	Sent          int64 `json:"sent"`
	Received      int64 `json:"received"`
	Duplicates    int64 `json:"duplicates"`
	DecodeErrors  int64 `json:"decode_errors"`
	HandlerErrors int64 `json:"handler_errors"`
	SendErrors    int64 `json:"send_errors"`
	Timeouts      int64 `json:"timeouts"`
	Reconnects    int64 `json:"reconnects"`
}

// Stats returns connectivity, turn state and error counts.
func (n *Node) Stats() Stats {
	st := Stats{
		Name:              n.name,
		Peer:              n.peer,
		ListenAddr:        n.server.Addr().String(),
		PeerURL:           n.client.URL(),
		InboundConnected:  n.server.Conn() != nil,
		OutboundConnected: n.client.Conn() != nil,
		LinkStatus:        n.LinkStatus().String(),
		State:             n.gate.State().String(),
		CacheSize:         n.cache.Len(),

		Sent:          n.stats.sent.Load(),
		Received:      n.stats.received.Load(),
		Duplicates:    n.stats.duplicates.Load(),
		DecodeErrors:  n.stats.decodeErrors.Load(),
		HandlerErrors: n.stats.handlerErrors.Load(),
		SendErrors:    n.stats.sendErrors.Load(),
		Timeouts:      n.stats.timeouts.Load(),
		Reconnects:    n.client.Reconnects(),
	}
	if id, ok := n.gate.Outstanding(); ok {
		st.PendingQuestion = id.String()
		st.PendingQuestions = 1
	}
	return st
}
