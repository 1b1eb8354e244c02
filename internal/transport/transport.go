// Package transport implements the request/response collaborator: a
// thin JSON client for the chat backend's REST surface. Payload shaping
// is left to the normalizer; list and history calls return raw objects.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/pelusa-v/pelusa-chat-client/internal/types"
)

const requestTimeout = 15 * time.Second

// AuthResponse is the result of a login or register call.
type AuthResponse struct {
	Token string
	User  types.User
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *log.Logger

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, logger *log.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		log:     logger,
	}
}

// SetToken installs the bearer token sent on subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) ClearToken() {
	c.SetToken("")
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createRoomRequest struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
}

type authPayload struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
	// Some server builds return the id at the top level instead of a
	// user object.
	UserId string `json:"userId"`
	Id     string `json:"id"`
}

func (c *Client) Register(ctx context.Context, username, email, password string) (AuthResponse, error) {
	var payload authPayload
	err := c.request(ctx, http.MethodPost, "/auth/register", registerRequest{
		Username: username,
		Email:    email,
		Password: password,
	}, &payload)
	if err != nil {
		return AuthResponse{}, err
	}

	resp := c.authResponse(payload, username, email)
	return resp, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var payload authPayload
	err := c.request(ctx, http.MethodPost, "/auth/login", loginRequest{
		Email:    email,
		Password: password,
	}, &payload)
	if err != nil {
		return AuthResponse{}, err
	}

	resp := c.authResponse(payload, "", email)
	return resp, nil
}

// authResponse assembles the user identity from whichever parts the
// server returned, falling back to the token's claims and finally to
// the email's local part.
func (c *Client) authResponse(payload authPayload, username, email string) AuthResponse {
	resp := AuthResponse{Token: payload.Token}
	if payload.Token != "" {
		c.SetToken(payload.Token)
	}

	if len(payload.User) > 0 {
		if err := json.Unmarshal(payload.User, &resp.User); err != nil {
			c.log.Printf("decode user object: %v", err)
		}
	}

	if resp.User.Id == "" || resp.User.Username == "" {
		claims := decodeTokenClaims(payload.Token)
		if resp.User.Id == "" {
			resp.User.Id = firstNonEmpty(claimString(claims, "id"), claimString(claims, "userId"), payload.UserId, payload.Id, "unknown")
		}
		if resp.User.Username == "" {
			resp.User.Username = firstNonEmpty(username, claimString(claims, "username"), emailLocalPart(email))
		}
	}

	return resp
}

func (c *Client) ListRooms(ctx context.Context) ([]map[string]any, error) {
	var rooms []map[string]any
	if err := c.request(ctx, http.MethodGet, "/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) CreateRoom(ctx context.Context, name string, isPrivate bool) (map[string]any, error) {
	var room map[string]any
	err := c.request(ctx, http.MethodPost, "/rooms", createRoomRequest{
		Name:      name,
		IsPrivate: isPrivate,
	}, &room)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomId string) error {
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/rooms/%s/join", roomId), nil, nil)
}

func (c *Client) LeaveRoom(ctx context.Context, roomId string) error {
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/rooms/%s/leave", roomId), nil, nil)
}

func (c *Client) GetHistory(ctx context.Context, roomId string, page, limit int) ([]map[string]any, error) {
	var payload struct {
		Messages []map[string]any `json:"messages"`
	}

	path := fmt.Sprintf("/messages/%s/history?page=%d&limit=%d", roomId, page, limit)
	if err := c.request(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}

	return payload.Messages, nil
}

func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Message: "encode request", Err: err}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &TransportError{Message: "build request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errorFromResponse(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}

	return nil
}

// errorFromResponse extracts the server's human-readable message from
// an error body, trying the "error" then "message" fields before
// falling back to the status text.
func errorFromResponse(statusCode int, body []byte) *TransportError {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &parsed)

	msg := firstNonEmpty(parsed.Error, parsed.Message, strings.ToLower(http.StatusText(statusCode)))
	return &TransportError{StatusCode: statusCode, Message: msg}
}

// decodeTokenClaims reads the claims of a JWT without verifying its
// signature. Verification is the server's job; the client only needs
// the identity fields.
func decodeTokenClaims(token string) jwt.MapClaims {
	if token == "" {
		return nil
	}

	claims := jwt.MapClaims{}
	parser := &jwt.Parser{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil
	}

	return claims
}

func claimString(claims jwt.MapClaims, key string) string {
	if claims == nil {
		return ""
	}

	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func emailLocalPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
