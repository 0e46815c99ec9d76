// Package reasoner talks to the external structure-prediction backend:
// the foreign process that actually runs the folding pipeline and
// narrates its own chain-of-thought as a typed message stream. The
// segmentation engine consumes that stream and translates it into the
// service's own event taxonomy.
package reasoner

import "encoding/json"

// MessageType is the reasoner's own vocabulary, distinct from and
// upstream of model.EventType.
type MessageType string

const (
	MessagePrologue   MessageType = "PROLOGUE"
	MessageAnnotation MessageType = "ANNOTATION"
	MessageThinking   MessageType = "THINKING"
	MessageConclusion MessageType = "CONCLUSION"
	// MessageError is emitted when the reasoner closes its own stream
	// with an error rather than a conclusion.
	MessageError MessageType = "ERROR"
)

// Message is one unit of the reasoner's narration.
type Message struct {
	Type               MessageType     `json:"type"`
	Text               string          `json:"text"`
	HasAttachment      bool            `json:"has_attachment"`
	AttachmentLabel    string          `json:"attachment_label,omitempty"`
	AttachmentFilename string          `json:"attachment_filename,omitempty"`
	AttachmentPDB      string          `json:"attachment_pdb,omitempty"`
	Final              bool            `json:"final"`
	// DelayMS is the fixture's own recorded pacing for this message, used
	// by the mock client's "real" delay mode.
	DelayMS int             `json:"delay_ms,omitempty"`
	Raw     json.RawMessage `json:"-"`
}
