package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
)

// OrderSummary is the slice of the order aggregate the rating consumer
// needs.
type OrderSummary struct {
	ID     uuid.UUID `json:"id"`
	ShopID uuid.UUID `json:"shop_id"`
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"`
}

// OrderClient resolves an order code to its aggregate via the order
// service's synchronous API.
type OrderClient interface {
	GetByCode(ctx context.Context, code string) (*OrderSummary, error)
}

type HTTPOrderClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOrderClient(baseURL string) *HTTPOrderClient {
	return &HTTPOrderClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPOrderClient) GetByCode(ctx context.Context, code string) (*OrderSummary, error) {
	endpoint := fmt.Sprintf("%s/orders/code/%s", c.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.Transient("order service unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NotFound("order %s not found", code)
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.Transient(fmt.Sprintf("order service returned %d", resp.StatusCode), nil)
	}

	var summary OrderSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, apperrors.Transient("malformed order response", err)
	}
	return &summary, nil
}
