package gateway

// OpenAI-compatible chat completion wire types. The upstream service accepts
// either a plain string or an ordered list of content blocks per message;
// vision calls use the block form with image_url entries.

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ContentBlock struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

func TextMessage(role, text string) ChatMessage {
	return ChatMessage{Role: role, Content: text}
}

// VisionMessage builds a user message carrying the prompt text followed by
// one image_url block per reference, in the given order.
func VisionMessage(text string, imageRefs []string) ChatMessage {
	blocks := []ContentBlock{{Type: "text", Text: text}}
	for _, ref := range imageRefs {
		blocks = append(blocks, ContentBlock{Type: "image_url", ImageURL: &ImageURL{URL: ref}})
	}
	return ChatMessage{Role: "user", Content: blocks}
}

type ChatResponse struct {
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Message ResponseMessage `json:"message"`
}

type ResponseMessage struct {
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// streamChunk is one SSE data payload of a streaming completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}
