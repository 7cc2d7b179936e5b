package proto

import "encoding/json"

// Payloads are flat JSON objects. A client sends {"name": ...} once to
// introduce itself, then {"message": ...} for every chat line. The server
// answers with exactly one of the outbound shapes below per frame.

// Inbound is what a participant sends to the room.
type Inbound struct {
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

// Outbound is the union of server-to-client payloads. Exactly one group of
// fields is populated per frame: Error, Joined, Quit, Ready, or the chat
// record triple (Name, Message, Timestamp).
type Outbound struct {
	Error  string `json:"error,omitempty"`
	Joined string `json:"joined,omitempty"`
	Quit   string `json:"quit,omitempty"`
	Ready  bool   `json:"ready,omitempty"`

	Name      string `json:"name,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// IsChat reports whether the payload is a chat record rather than a
// control frame.
func (o Outbound) IsChat() bool {
	return o.Error == "" && o.Joined == "" && o.Quit == "" && !o.Ready
}

// ChatRecord is the persisted message shape; it is also the broadcast chat
// payload, so one serialization serves both.
type ChatRecord struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// The helpers below serialize fixed-shape payloads; marshaling them cannot
// fail, so they return the frame bytes directly.

// Error encodes an error payload.
func Error(msg string) []byte {
	b, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: msg})
	return b
}

// Joined encodes a join announcement.
func Joined(name string) []byte {
	b, _ := json.Marshal(struct {
		Joined string `json:"joined"`
	}{Joined: name})
	return b
}

// Quit encodes a departure announcement.
func Quit(name string) []byte {
	b, _ := json.Marshal(struct {
		Quit string `json:"quit"`
	}{Quit: name})
	return b
}

// Ready encodes the replay-complete marker.
func Ready() []byte {
	b, _ := json.Marshal(struct {
		Ready bool `json:"ready"`
	}{Ready: true})
	return b
}

// Chat encodes a stamped chat record.
func Chat(rec ChatRecord) []byte {
	b, _ := json.Marshal(rec)
	return b
}
