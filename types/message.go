package types

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Message is the payload of message/send and message/stream
type Message struct {
	Role      string         `json:"role"`
	Parts     []Part         `json:"parts"`
	MessageID string         `json:"messageId"`
	ContextID string         `json:"contextId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Text concatenates the text parts of a message
func (m Message) Text() string {
	var b strings.Builder
	for _, part := range m.Parts {
		if text, ok := part.(TextPart); ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text.Text)
		}
	}
	return b.String()
}

// Files returns the file parts of a message
func (m Message) Files() []FilePart {
	var files []FilePart
	for _, part := range m.Parts {
		if file, ok := part.(FilePart); ok {
			files = append(files, file)
		}
	}
	return files
}

// NewTextPart creates a text part
func NewTextPart(text string) TextPart {
	return TextPart{Text: text}
}

// NewFilePart creates an inline file part from raw bytes
func NewFilePart(name, mimeType string, data []byte) FilePart {
	return FilePart{
		Name:     name,
		MimeType: mimeType,
		Bytes:    base64.StdEncoding.EncodeToString(data),
	}
}

// NewUserMessage creates a user message from text with a generated id
func NewUserMessage(text string) Message {
	return Message{
		Role:      "user",
		Parts:     []Part{NewTextPart(text)},
		MessageID: uuid.New().String(),
	}
}

// NewAgentMessage creates an agent reply
func NewAgentMessage(taskID string, parts ...Part) Message {
	return Message{
		Role:      "agent",
		Parts:     parts,
		MessageID: uuid.New().String(),
		TaskID:    taskID,
	}
}

// MessageSendParams is the decoded params of message/send
type MessageSendParams struct {
	Message Message `json:"message"`
}

// StreamChunk is one chunk of a message/stream call. Each call carries a
// single chunk; there is no long-lived stream.
type StreamChunk struct {
	TaskID   string  `json:"taskId,omitempty"`
	Sequence int     `json:"sequence"`
	Message  Message `json:"message"`
	Final    bool    `json:"final,omitempty"`
}

// TaskQueryParams is the decoded params of tasks/get
type TaskQueryParams struct {
	TaskID string `json:"taskId"`
}

// SubscribeParams is the decoded params of tasks/subscribe
type SubscribeParams struct {
	Event       string `json:"event"`
	CallbackURL string `json:"callbackUrl"`
}

// FileUploadParams is the decoded params of file/upload
type FileUploadParams struct {
	File FilePart `json:"file"`
}

// UnmarshalJSON decodes the tagged file part
func (p *FileUploadParams) UnmarshalJSON(data []byte) error {
	var helper struct {
		File json.RawMessage `json:"file"`
	}
	if err := json.Unmarshal(data, &helper); err != nil {
		return err
	}
	if len(helper.File) == 0 {
		return nil
	}
	part, err := UnmarshalPart(helper.File)
	if err != nil {
		return err
	}
	file, ok := part.(FilePart)
	if !ok {
		return &json.UnmarshalTypeError{Value: string(part.Kind()), Field: "file"}
	}
	p.File = file
	return nil
}

// FileUploadResult is returned by file/upload
type FileUploadResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// TaskState is the lifecycle state of a task recorded by an agent
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
)

// IsTerminal reports whether a task in this state accepts no further messages
func (s TaskState) IsTerminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed
}

// Task is the record an agent keeps for a message exchange
type Task struct {
	ID        string          `json:"id"`
	AgentID   string          `json:"agentId"`
	State     TaskState       `json:"state"`
	History   []Message       `json:"history"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Subscription event source
const EventSource = "menu-agents/gateway"

// NewSubscriptionEvent creates a CloudEvent delivered to tasks/subscribe callbacks
func NewSubscriptionEvent(eventType, agentID string, data any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(uuid.New().String())
	event.SetType(eventType)
	event.SetSource(EventSource + "/" + agentID)
	event.SetTime(time.Now())
	_ = event.SetData(cloudevents.ApplicationJSON, data)

	return event
}
