package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Part is a closed sum type over the message part variants. The wire form is
// tagged by a "type" member.
type Part interface {
	Kind() MessagePartKind
	isPart()
}

// TextPart carries plain text
type TextPart struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FilePart carries a file either inline (base64 Bytes) or by URI
type FilePart struct {
	Name     string         `json:"name,omitempty"`
	MimeType string         `json:"mimeType,omitempty"`
	Bytes    string         `json:"bytes,omitempty"`
	URI      string         `json:"uri,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (TextPart) Kind() MessagePartKind { return MessagePartKindText }
func (FilePart) Kind() MessagePartKind { return MessagePartKindFile }

func (TextPart) isPart() {}
func (FilePart) isPart() {}

// MarshalJSON adds the type tag
func (p TextPart) MarshalJSON() ([]byte, error) {
	type alias TextPart
	return json.Marshal(struct {
		Type MessagePartKind `json:"type"`
		alias
	}{Type: MessagePartKindText, alias: alias(p)})
}

// MarshalJSON adds the type tag
func (p FilePart) MarshalJSON() ([]byte, error) {
	type alias FilePart
	return json.Marshal(struct {
		Type MessagePartKind `json:"type"`
		alias
	}{Type: MessagePartKindFile, alias: alias(p)})
}

// Decode returns the inline file content
func (p FilePart) Decode() ([]byte, error) {
	if p.Bytes == "" {
		return nil, fmt.Errorf("file part %q has no inline bytes", p.Name)
	}
	data, err := base64.StdEncoding.DecodeString(p.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode file part %q: %w", p.Name, err)
	}
	return data, nil
}

// UnmarshalPart decodes a single tagged part
func UnmarshalPart(data []byte) (Part, error) {
	var tag struct {
		Type MessagePartKind `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("failed to unmarshal part: %w", err)
	}

	if !tag.Type.IsValid() {
		return nil, fmt.Errorf("unsupported part type %q", string(tag.Type))
	}

	if tag.Type == MessagePartKindText {
		var part TextPart
		if err := json.Unmarshal(data, &part); err != nil {
			return nil, fmt.Errorf("failed to unmarshal text part: %w", err)
		}
		return part, nil
	}

	var part FilePart
	if err := json.Unmarshal(data, &part); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file part: %w", err)
	}
	if part.Bytes == "" && part.URI == "" {
		return nil, fmt.Errorf("file part must carry bytes or uri")
	}
	return part, nil
}

// UnmarshalParts decodes a JSON array of tagged parts
func UnmarshalParts(data []byte) ([]Part, error) {
	var rawParts []json.RawMessage
	if err := json.Unmarshal(data, &rawParts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw parts: %w", err)
	}

	parts := make([]Part, len(rawParts))
	for i, rawPart := range rawParts {
		part, err := UnmarshalPart(rawPart)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal part at index %d: %w", i, err)
		}
		parts[i] = part
	}

	return parts, nil
}

// messageUnmarshalHelper mirrors Message with raw parts
type messageUnmarshalHelper struct {
	Role      string            `json:"role"`
	Parts     []json.RawMessage `json:"parts"`
	MessageID string            `json:"messageId"`
	ContextID string            `json:"contextId,omitempty"`
	TaskID    string            `json:"taskId,omitempty"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
}

// UnmarshalJSON decodes the typed parts of a message
func (m *Message) UnmarshalJSON(data []byte) error {
	var helper messageUnmarshalHelper
	if err := json.Unmarshal(data, &helper); err != nil {
		return err
	}

	parts := make([]Part, len(helper.Parts))
	for i, rawPart := range helper.Parts {
		part, err := UnmarshalPart(rawPart)
		if err != nil {
			return fmt.Errorf("failed to unmarshal part at index %d: %w", i, err)
		}
		parts[i] = part
	}

	m.Role = helper.Role
	m.Parts = parts
	m.MessageID = helper.MessageID
	m.ContextID = helper.ContextID
	m.TaskID = helper.TaskID
	m.Metadata = helper.Metadata

	return nil
}
