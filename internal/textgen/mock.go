package textgen

import (
	"context"
	"strings"
)

// MockClient returns canned labeled-field replies so the service runs
// end-to-end without a backend key. It inspects the prompt to decide
// whether a summary or a tagging reply is expected.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Complete(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "TAGS:") {
		return "TAGS: [life_advice]\nEMOTION: neutral\nINTENSITY: 4", nil
	}
	return "TOPIC: general\nEMOTION: neutral\nSUMMARY: The user and the companion had a casual exchange.", nil
}
