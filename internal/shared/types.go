package shared

// Chat roles accepted from the browser client.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	Model         string `json:"model"`
	SystemMessage string `json:"systemMessage,omitempty"`
}

// ChatRequestPayload is the body of POST /api/chat.
type ChatRequestPayload struct {
	Messages []ChatMessage `json:"messages"`
	Config   ChatConfig    `json:"config"`
}

// InferenceBody is what gets sent to the inference backend.
type InferenceBody struct {
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// APIError is the JSON body sent for any failure before streaming starts.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Task        string `json:"task,omitempty"`
}

type ModelList struct {
	Data []Model `json:"data"`
}
