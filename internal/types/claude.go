package types

// Organization is one entry of GET /api/organizations.
type Organization struct {
	UUID string `json:"uuid"`
	Name string `json:"name,omitempty"`
}

// CreateConversationPayload is the body of
// POST /api/organizations/{scope}/chat_conversations.
type CreateConversationPayload struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// CompletionDescriptor is the nested "completion" object of an append_message call.
type CompletionDescriptor struct {
	Prompt   string `json:"prompt"`
	Timezone string `json:"timezone"`
	Model    string `json:"model"`
}

// AppendMessagePayload is the body of POST /api/append_message. Text always
// carries the same content as Completion.Prompt.
type AppendMessagePayload struct {
	Completion       CompletionDescriptor `json:"completion"`
	OrganizationUUID string               `json:"organization_uuid"`
	ConversationUUID string               `json:"conversation_uuid"`
	Text             string               `json:"text"`
	Attachments      []any                `json:"attachments"`
}

// NewAppendMessagePayload builds the submission payload for an already
// normalized model name.
func NewAppendMessagePayload(scope, conversationID, prompt, model string) AppendMessagePayload {
	return AppendMessagePayload{
		Completion: CompletionDescriptor{
			Prompt:   prompt,
			Timezone: "",
			Model:    model,
		},
		OrganizationUUID: scope,
		ConversationUUID: conversationID,
		Text:             prompt,
		Attachments:      []any{},
	}
}
