package llm

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Encode writes m in the chat completions wire format.
func (m Message) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("role")
	e.Str(string(m.Role))
	e.FieldStart("content")
	if m.Content == "" && len(m.ToolCalls) > 0 {
		e.Null()
	} else {
		e.Str(m.Content)
	}
	if m.Name != "" {
		e.FieldStart("name")
		e.Str(m.Name)
	}
	if m.ToolCallID != "" {
		e.FieldStart("tool_call_id")
		e.Str(m.ToolCallID)
	}
	if len(m.ToolCalls) > 0 {
		e.FieldStart("tool_calls")
		e.ArrStart()
		for _, tc := range m.ToolCalls {
			tc.Encode(e)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

// Decode reads a chat message. A null content is read as empty.
func (m *Message) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "role":
			var role string
			role, err = d.Str()
			m.Role = Role(role)
		case "content":
			m.Content, err = optString(d)
		case "name":
			m.Name, err = optString(d)
		case "tool_call_id":
			m.ToolCallID, err = optString(d)
		case "tool_calls":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				var tc ToolCall
				if err := tc.Decode(d); err != nil {
					return err
				}
				m.ToolCalls = append(m.ToolCalls, tc)
				return nil
			})
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "message %q", key)
		}
		return nil
	})
}

// Encode writes tc as a function tool call.
func (tc ToolCall) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(tc.ID)
	e.FieldStart("type")
	e.Str("function")
	e.FieldStart("function")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(tc.Name)
	e.FieldStart("arguments")
	e.Str(tc.Arguments)
	e.ObjEnd()
	e.ObjEnd()
}

// Decode reads a tool call object.
func (tc *ToolCall) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := d.Str()
			tc.ID = v
			return err
		case "function":
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "name":
					v, err := d.Str()
					tc.Name = v
					return err
				case "arguments":
					// Some providers send arguments as an object rather
					// than an encoded string.
					if d.Next() == jx.String {
						v, err := d.Str()
						tc.Arguments = v
						return err
					}
					raw, err := d.Raw()
					tc.Arguments = raw.String()
					return err
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
}

// Encode writes t as a function tool declaration.
func (t Tool) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str("function")
	e.FieldStart("function")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(t.Name)
	e.FieldStart("description")
	e.Str(t.Description)
	e.FieldStart("parameters")
	if len(t.Parameters) > 0 {
		e.Raw(t.Parameters)
	} else {
		e.ObjStart()
		e.FieldStart("type")
		e.Str("object")
		e.ObjEnd()
	}
	e.ObjEnd()
	e.ObjEnd()
}

func encodeChatRequest(e *jx.Encoder, model string, maxTokens int, req ChatRequest) {
	e.ObjStart()
	e.FieldStart("model")
	e.Str(model)
	e.FieldStart("messages")
	e.ArrStart()
	for _, m := range req.Messages {
		m.Encode(e)
	}
	e.ArrEnd()
	if len(req.Tools) > 0 {
		e.FieldStart("tools")
		e.ArrStart()
		for _, t := range req.Tools {
			t.Encode(e)
		}
		e.ArrEnd()
		e.FieldStart("tool_choice")
		e.Str("auto")
	}
	if maxTokens > 0 {
		e.FieldStart("max_tokens")
		e.Int(maxTokens)
	}
	e.ObjEnd()
}

func decodeChatResponse(data []byte) (*ChatResponse, error) {
	var (
		resp    ChatResponse
		choices int
	)
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "model":
			v, err := d.Str()
			resp.Model = v
			return err
		case "choices":
			return d.Arr(func(d *jx.Decoder) error {
				choices++
				if choices > 1 {
					return d.Skip()
				}
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					switch string(key) {
					case "message":
						return resp.Message.Decode(d)
					case "finish_reason":
						v, err := optString(d)
						resp.FinishReason = v
						return err
					default:
						return d.Skip()
					}
				})
			})
		case "usage":
			return resp.Usage.decode(d)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode completion")
	}
	if choices == 0 {
		return nil, errors.New("decode completion: no choices returned")
	}
	if resp.Message.Role == "" {
		resp.Message.Role = RoleAssistant
	}
	return &resp, nil
}

func (u *Usage) decode(d *jx.Decoder) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "prompt_tokens":
			u.PromptTokens, err = d.Int()
		case "completion_tokens":
			u.CompletionTokens, err = d.Int()
		case "total_tokens":
			u.TotalTokens, err = d.Int()
		default:
			return d.Skip()
		}
		return err
	})
}

// decodeAPIError extracts {"error": {"message", "code"}} from a failure
// body, falling back to the raw body text.
func decodeAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "error" {
			return d.Skip()
		}
		if d.Next() == jx.String {
			v, err := d.Str()
			apiErr.Message = v
			return err
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "message":
				v, err := d.Str()
				apiErr.Message = v
				return err
			case "code":
				v, err := d.Raw()
				apiErr.Code = trimQuotes(v.String())
				return err
			default:
				return d.Skip()
			}
		})
	})
	if err != nil || apiErr.Message == "" {
		apiErr.Message = string(data)
	}
	return apiErr
}

func optString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
