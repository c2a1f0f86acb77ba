package tools

import "encoding/json"

// Result is the unified return type from tool execution.
type Result struct {
	ForLLM  string `json:"for_llm"`  // content sent to the LLM
	IsError bool   `json:"is_error"` // marks error
	Err     error  `json:"-"`        // internal error (not serialized)
}

func NewResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

func ErrorResult(message string) *Result {
	return &Result{ForLLM: message, IsError: true}
}

// JSONResult encodes v for the LLM.
func JSONResult(v any) *Result {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrorResult("encode result: " + err.Error()).WithError(err)
	}
	return NewResult(string(data))
}

func (r *Result) WithError(err error) *Result {
	r.Err = err
	return r
}
