package llm

// Role tags a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation history.
type Message struct {
	Role    Role
	Content string

	// Name is the function name on tool-result messages.
	Name string

	// ToolCalls are the calls requested by an assistant message.
	ToolCalls []ToolCall

	// ToolCallID links a tool-result message to the call it answers.
	ToolCallID string
}

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID   string
	Name string
	// Arguments is the raw JSON object produced by the model. It is not
	// guaranteed to be valid JSON.
	Arguments string
}

// Tool declares a function the model may call.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object.
	Parameters []byte
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewToolMessage creates the result message for a tool call.
func NewToolMessage(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Name: call.Name, ToolCallID: call.ID, Content: content}
}
