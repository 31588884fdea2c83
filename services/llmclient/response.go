package llmclient

import (
	"encoding/json"

	"github.com/GlacierEQ/llmbridge/services"
)

type chatCompletionResponse struct {
	Choices []struct {
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type completionResponse struct {
	Choices []struct {
		Text *string `json:"text"`
	} `json:"choices"`
}

type modelListResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	// Local servers (e.g. ollama's native API) list models under "models".
	Models []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"models"`
}

func extractChatContent(body json.RawMessage) (string, error) {
	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &services.InvalidResponseShapeError{Field: "choices"}
	}
	if len(resp.Choices) == 0 {
		return "", &services.InvalidResponseShapeError{Field: "choices"}
	}
	if resp.Choices[0].Message == nil {
		return "", &services.InvalidResponseShapeError{Field: "choices[0].message"}
	}
	return resp.Choices[0].Message.Content, nil
}

func extractCompletionText(body json.RawMessage) (string, error) {
	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &services.InvalidResponseShapeError{Field: "choices"}
	}
	if len(resp.Choices) == 0 {
		return "", &services.InvalidResponseShapeError{Field: "choices"}
	}
	if resp.Choices[0].Text == nil {
		return "", &services.InvalidResponseShapeError{Field: "choices[0].text"}
	}
	return *resp.Choices[0].Text, nil
}

func extractModelIDs(body json.RawMessage) ([]string, error) {
	var resp modelListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &services.InvalidResponseShapeError{Field: "data"}
	}
	ids := make([]string, 0, len(resp.Data)+len(resp.Models))
	for _, m := range resp.Data {
		ids = append(ids, m.ID)
	}
	for _, m := range resp.Models {
		if m.ID != "" {
			ids = append(ids, m.ID)
		} else if m.Name != "" {
			ids = append(ids, m.Name)
		}
	}
	return ids, nil
}
