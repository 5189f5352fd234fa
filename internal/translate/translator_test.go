package translate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinimatch/clinimatch/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:      "msg_test",
		Model:   "claude-haiku-4-5-20251001",
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

const validJSON = `{
	"simplifiedDescription": "This study tests a new diabetes drug.",
	"eligibilitySimplified": "Adults 18 to 65 with type 2 diabetes.",
	"timeCommitment": "Monthly visits for 6 months.",
	"keyBenefits": "Free medication and health checkups.",
	"compensationExplanation": "You receive $50 per visit."
}`

func testRequest() Request {
	return Request{
		Title:       "A Study of Drug X in Type 2 Diabetes",
		Criteria:    "Inclusion: adults 18-65 with T2DM.",
		Description: "Randomized placebo-controlled trial of Drug X.",
	}
}

func TestTranslate_ValidResponse(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(validJSON), nil)

	tr, err := New(client, Options{}).Translate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "This study tests a new diabetes drug.", tr.SimplifiedDescription)
	assert.Equal(t, "Adults 18 to 65 with type 2 diabetes.", tr.EligibilitySimplified)
	assert.Equal(t, "Monthly visits for 6 months.", tr.TimeCommitment)
	assert.Equal(t, "Free medication and health checkups.", tr.KeyBenefits)
	assert.Equal(t, "You receive $50 per visit.", tr.CompensationExplanation)
}

func TestTranslate_FencedResponse(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(
		textResponse("```json\n"+validJSON+"\n```"), nil)

	tr, err := New(client, Options{}).Translate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "This study tests a new diabetes drug.", tr.SimplifiedDescription)
}

func TestTranslate_NullCompensationAccepted(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{
		"simplifiedDescription": "Desc.",
		"eligibilitySimplified": "Elig.",
		"timeCommitment": "Time.",
		"keyBenefits": "Benefits.",
		"compensationExplanation": null
	}`), nil)

	tr, err := New(client, Options{}).Translate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, tr.CompensationExplanation)
}

func TestTranslate_MissingRequiredField(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{
		"simplifiedDescription": "Desc.",
		"eligibilitySimplified": "Elig.",
		"keyBenefits": "Benefits."
	}`), nil)

	_, err := New(client, Options{}).Translate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field")
}

func TestTranslate_NonJSONResponse(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(
		textResponse("I'm sorry, I can't help with that."), nil)

	_, err := New(client, Options{}).Translate(context.Background(), testRequest())
	assert.Error(t, err)
}

func TestTranslate_APIError(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	_, err := New(client, Options{}).Translate(context.Background(), testRequest())
	assert.Error(t, err)
}

func TestTranslate_RequestCarriesPromptAndModel(t *testing.T) {
	client := &mockAnthropicClient{}
	var got anthropic.MessageRequest
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(validJSON), nil).Run(func(args mock.Arguments) {
		got = args.Get(1).(anthropic.MessageRequest)
	})

	req := testRequest()
	req.Compensation = "$50 per visit"

	_, err := New(client, Options{Model: "claude-haiku-4-5-20251001", MaxTokens: 512}).Translate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "claude-haiku-4-5-20251001", got.Model)
	assert.Equal(t, int64(512), got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.3, *got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Contains(t, got.Messages[0].Content, req.Title)
	assert.Contains(t, got.Messages[0].Content, "Compensation: $50 per visit")
	assert.Contains(t, got.System, "medical translator")
}

func TestCleanJSON(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                          `{"a":1}`,
		"```json\n{\"a\":1}\n```":          `{"a":1}`,
		"```\n{\"a\":1}\n```":              `{"a":1}`,
		"Here is the JSON: {\"a\":1} done": `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanJSON(in))
	}
}
