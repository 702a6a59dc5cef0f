// Package identity is a thin client for the identity service, which
// owns user accounts and profile metadata. Only display data is fetched
// here; authentication itself never passes through this service.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

type Client interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*User, error)
}

type httpClient struct {
	baseURL        string
	internalSecret string
	client         *http.Client
}

// NewHTTPClient returns a Client that calls the identity service over
// its internal API, authenticated with the shared internal secret.
func NewHTTPClient(baseURL, internalSecret string) Client {
	return &httpClient{
		baseURL:        baseURL,
		internalSecret: internalSecret,
		client:         &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *httpClient) GetUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	url := fmt.Sprintf("%s/v1/internal/users/%s", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Internal-Secret", c.internalSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity service returned status %d for user %s", resp.StatusCode, userID)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}
