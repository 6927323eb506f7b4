// Package backend is the HTTP client for the backing store of record. It
// implements the assignment, job, and order gateways over a small JSON API;
// every call is a single request with a bounded timeout and no retries, the
// engine decides what a failure means.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/offer"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

const defaultTimeout = 10 * time.Second

// Client talks to the backing store's dispatch API on behalf of one
// deliverer. It implements ports.AssignmentGateway, ports.JobGateway and
// ports.OrderGateway.
type Client struct {
	baseURL     string
	delivererID kernel.UUID
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a backing-store client rooted at baseURL.
func NewClient(baseURL string, delivererID kernel.UUID, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errs.NewValueIsRequiredError("baseURL")
	}
	if err := delivererID.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		delivererID: delivererID,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		logger:      logger.With("component", "backend_client"),
	}, nil
}

// assignmentDTO is the wire form of one candidate assignment.
type assignmentDTO struct {
	AssignmentID    string    `json:"assignment_id"`
	OrderID         string    `json:"order_id"`
	ShopID          string    `json:"shop_id"`
	CreatedAt       time.Time `json:"created_at"`
	DistanceKm      *float64  `json:"distance_km,omitempty"`
	DeliveryFee     float64   `json:"delivery_fee"`
	Pickup          *geoDTO   `json:"pickup,omitempty"`
	DeliveryAddress string    `json:"delivery_address"`
}

type geoDTO struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

func (d assignmentDTO) toDomain() (offer.Offer, error) {
	assignmentID, err := kernel.UUIDFromString(d.AssignmentID)
	if err != nil {
		return offer.Offer{}, err
	}
	orderID, err := kernel.UUIDFromString(d.OrderID)
	if err != nil {
		return offer.Offer{}, err
	}
	shopID, err := kernel.UUIDFromString(d.ShopID)
	if err != nil {
		return offer.Offer{}, err
	}

	distance := kernel.UnknownDistance
	if d.DistanceKm != nil {
		distance = *d.DistanceKm
	}

	var pickup kernel.GeoPoint
	if d.Pickup != nil {
		pickup, err = kernel.NewGeoPoint(d.Pickup.Latitude, d.Pickup.Longitude)
		if err != nil {
			return offer.Offer{}, err
		}
	}

	return offer.NewOffer(
		assignmentID, orderID, shopID,
		d.CreatedAt, distance, d.DeliveryFee,
		pickup, d.DeliveryAddress,
	)
}

// Poll retrieves the candidate assignment pool for this deliverer.
func (c *Client) Poll(ctx context.Context) ([]offer.Offer, error) {
	url := fmt.Sprintf("%s/api/v1/deliverers/%s/assignments", c.baseURL, c.delivererID.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll assignments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll assignments: unexpected status %d", resp.StatusCode)
	}

	var dtos []assignmentDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("decode assignments: %w", err)
	}

	offers := make([]offer.Offer, 0, len(dtos))
	for _, dto := range dtos {
		o, err := dto.toDomain()
		if err != nil {
			// One malformed row must not poison the whole poll.
			c.logger.WarnContext(ctx, "skipping malformed assignment", "assignment", dto.AssignmentID, "error", err)
			continue
		}
		offers = append(offers, o)
	}
	return offers, nil
}

// Accept claims the assignment for this deliverer. A 409 means another
// courier already holds it and maps to ports.ErrOfferTaken.
func (c *Client) Accept(ctx context.Context, assignmentID kernel.UUID) error {
	url := fmt.Sprintf("%s/api/v1/assignments/%s/accept", c.baseURL, assignmentID.String())
	status, err := c.post(ctx, url, acceptBody{DelivererID: c.delivererID.String()})
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusConflict, http.StatusGone, http.StatusNotFound:
		return ports.ErrOfferTaken
	default:
		return fmt.Errorf("accept assignment: unexpected status %d", status)
	}
}

type acceptBody struct {
	DelivererID string `json:"deliverer_id"`
}

// ConfirmPickup reports the deliverer collected the order at the shop.
func (c *Client) ConfirmPickup(ctx context.Context, orderID kernel.UUID) error {
	return c.postOrderAction(ctx, orderID, "pickup", nil)
}

// ConfirmDelivery reports delivery completed at the customer.
func (c *Client) ConfirmDelivery(ctx context.Context, orderID kernel.UUID) error {
	return c.postOrderAction(ctx, orderID, "delivery", nil)
}

// CancelJob abandons the job before pickup.
func (c *Client) CancelJob(ctx context.Context, orderID kernel.UUID) error {
	return c.postOrderAction(ctx, orderID, "courier-cancel", nil)
}

// CancelOrder cancels a shop order with a reason.
func (c *Client) CancelOrder(ctx context.Context, orderID kernel.UUID, reason string) error {
	return c.postOrderAction(ctx, orderID, "cancel", cancelBody{Reason: reason})
}

type cancelBody struct {
	Reason string `json:"reason"`
}

func (c *Client) postOrderAction(ctx context.Context, orderID kernel.UUID, action string, body any) error {
	url := fmt.Sprintf("%s/api/v1/orders/%s/%s", c.baseURL, orderID.String(), action)
	status, err := c.post(ctx, url, body)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("%s order: unexpected status %d", action, status)
	}
	return nil
}

// post issues a JSON POST and returns the response status; the body is
// drained and discarded.
func (c *Client) post(ctx context.Context, url string, body any) (int, error) {
	var reader *strings.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = strings.NewReader(string(payload))
	} else {
		reader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
