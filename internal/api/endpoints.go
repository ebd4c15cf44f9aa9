package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jwulff/krishi/internal/session"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the token, the role and the user identity. The
// backend reports the role next to the user rather than inside it.
type LoginResponse struct {
	Token string       `json:"token"`
	Role  session.Role `json:"role"`
	User  *struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

// SessionUser merges the user record and role into one identity.
func (r LoginResponse) SessionUser() (session.User, bool) {
	if r.User == nil {
		return session.User{}, false
	}
	return session.User{
		ID:    r.User.ID,
		Name:  r.User.Name,
		Email: r.User.Email,
		Role:  r.Role,
	}, true
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse may carry a token for immediate login.
type RegisterResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	Role    session.Role `json:"role"`
}

// AskRequest is the body of POST /api/chat/ask. Topic travels as "disease",
// the backend's name for the subject of the conversation.
type AskRequest struct {
	Question   string         `json:"question"`
	Topic      string         `json:"disease"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details"`
	Language   string         `json:"language"`
}

// CropRequest is the body of POST /api/crop/simple-predict.
type CropRequest struct {
	Location string `json:"location"`
	Season   string `json:"season"`
	SoilType string `json:"soil_type"`
	Water    string `json:"water"`
}

// CropPick is one recommended crop.
type CropPick struct {
	Crop   string `json:"crop"`
	Profit string `json:"profit"`
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	const path = "/api/auth/login"
	var resp LoginResponse
	if err := c.Do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return LoginResponse{}, err
	}
	if resp.Token == "" {
		return LoginResponse{}, &Error{Op: "POST " + path, Status: http.StatusOK, Err: ErrMissingToken}
	}
	return resp, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.Do(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return RegisterResponse{}, err
	}
	return resp, nil
}

// Me returns the user behind the current token.
func (c *Client) Me(ctx context.Context) (session.User, error) {
	var raw struct {
		ID    string       `json:"_id"`
		Name  string       `json:"name"`
		Email string       `json:"email"`
		Role  session.Role `json:"role"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/auth/me", nil, &raw); err != nil {
		return session.User{}, err
	}
	return session.User{ID: raw.ID, Name: raw.Name, Email: raw.Email, Role: raw.Role}, nil
}

// Ask sends a question to the assistant and returns the answer text.
func (c *Client) Ask(ctx context.Context, req AskRequest) (string, error) {
	const path = "/api/chat/ask"
	if req.Details == nil {
		req.Details = map[string]any{}
	}
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodPost, path, req, &raw); err != nil {
		return "", err
	}
	answer, err := decodeAnswer(raw)
	if err != nil {
		return "", &Error{Op: "POST " + path, Status: http.StatusOK, Err: err}
	}
	return answer, nil
}

// decodeAnswer normalises the assistant response to its answer text. Older
// backends used "response", "reply" or "message" instead of "answer".
func decodeAnswer(raw json.RawMessage) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("decode answer: %w", err)
	}
	for _, key := range []string{"answer", "response", "reply", "message"} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(v, &s) == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), nil
		}
	}
	return "", ErrEmptyAnswer
}

// ParseVoice asks the backend to extract form fields from free speech for
// the given domain (e.g. "crop"). Fields the backend could not extract are
// absent from the result.
func (c *Client) ParseVoice(ctx context.Context, domain, text string) (map[string]string, error) {
	path := "/api/" + strings.Trim(domain, "/") + "/parse-voice-smart"
	var raw map[string]any
	if err := c.Do(ctx, http.MethodPost, path, map[string]string{"text": text}, &raw); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		if k == "method" {
			continue
		}
		switch val := v.(type) {
		case string:
			if strings.TrimSpace(val) != "" {
				fields[k] = strings.TrimSpace(val)
			}
		case float64:
			fields[k] = fmt.Sprint(val)
		}
	}
	return fields, nil
}

// RecommendCrops returns the backend's top crops for the given conditions.
func (c *Client) RecommendCrops(ctx context.Context, req CropRequest) ([]CropPick, error) {
	var resp struct {
		Top []CropPick `json:"top_3_crops"`
	}
	if err := c.Do(ctx, http.MethodPost, "/api/crop/simple-predict", req, &resp); err != nil {
		return nil, err
	}
	return resp.Top, nil
}
