package protocol

import "encoding/json"

// Usage tracks token usage for one interaction. The final payload's usage
// object varies by provider (Responses API vs chat-completions naming),
// so UnmarshalJSON accepts both vocabularies.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
	TotalTokens     int `json:"total_tokens"`
}

// IsZero reports whether no counters were populated.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.ReasoningTokens == 0 && u.TotalTokens == 0
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *Usage) UnmarshalJSON(data []byte) error {
	var aux struct {
		InputTokens      *int `json:"input_tokens"`
		PromptTokens     *int `json:"prompt_tokens"`
		OutputTokens     *int `json:"output_tokens"`
		CompletionTokens *int `json:"completion_tokens"`
		ReasoningTokens  *int `json:"reasoning_tokens"`
		TotalTokens      *int `json:"total_tokens"`
		OutputDetails    *struct {
			ReasoningTokens *int `json:"reasoning_tokens"`
		} `json:"output_tokens_details"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	u.InputTokens = firstInt(aux.InputTokens, aux.PromptTokens)
	u.OutputTokens = firstInt(aux.OutputTokens, aux.CompletionTokens)
	u.ReasoningTokens = firstInt(aux.ReasoningTokens)
	if u.ReasoningTokens == 0 && aux.OutputDetails != nil {
		u.ReasoningTokens = firstInt(aux.OutputDetails.ReasoningTokens)
	}
	u.TotalTokens = firstInt(aux.TotalTokens)
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return nil
}

func firstInt(candidates ...*int) int {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0
}
