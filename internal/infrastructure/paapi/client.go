// Package paapi is a minimal Product Advertising API 5 client for GetItems.
package paapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/shopspring/decimal"

	"DealsScanner/internal/domain"
	"DealsScanner/internal/logging"
	"DealsScanner/internal/ports"
)

const (
	serviceName    = "ProductAdvertisingAPI"
	getItemsPath   = "/paapi5/getitems"
	getItemsTarget = "com.amazon.paapi5.v1.ProductAdvertisingAPIv1.GetItems"
)

var getItemsResources = []string{
	"ItemInfo.Title",
	"Images.Primary.Large",
	"Offers.Listings.Price",
	"Offers.Listings.SavingBasis",
	"Offers.Listings.Availability.Message",
	"Offers.Listings.Availability.MaxOrderQuantity",
}

var throttleCodes = map[string]bool{
	"TooManyRequests":  true,
	"RequestThrottled": true,
}

var throttleMessages = []string{"requests limit reached", "throttl", "rate limit"}

// Config holds credentials and the target marketplace.
type Config struct {
	AccessKey   string
	SecretKey   string
	PartnerTag  string
	Marketplace Marketplace
	// Endpoint overrides https://<Marketplace.Host>.
	Endpoint string
	Timeout  time.Duration
}

// Client signs and sends GetItems requests.
type Client struct {
	endpoint    string
	partnerTag  string
	marketplace Marketplace
	creds       aws.Credentials
	signer      *v4.Signer
	http        *http.Client
	now         func() time.Time
	logger      *slog.Logger
}

var _ ports.CatalogClient = (*Client)(nil)

// NewClient creates a reusable API client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "https://" + cfg.Marketplace.Host
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Client{
		endpoint:    endpoint,
		partnerTag:  cfg.PartnerTag,
		marketplace: cfg.Marketplace,
		creds: aws.Credentials{
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
			Source:          "DealsScannerConfig",
		},
		signer: v4.NewSigner(),
		http:   &http.Client{Timeout: timeout},
		now:    time.Now,
		logger: logger,
	}
}

type getItemsRequest struct {
	ItemIDs     []string `json:"ItemIds"`
	ItemIDType  string   `json:"ItemIdType"`
	PartnerTag  string   `json:"PartnerTag"`
	PartnerType string   `json:"PartnerType"`
	Marketplace string   `json:"Marketplace"`
	Resources   []string `json:"Resources"`
}

type apiError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

type apiPrice struct {
	Amount   *decimal.Decimal `json:"Amount"`
	Currency string           `json:"Currency"`
}

type apiItem struct {
	ASIN   string `json:"ASIN"`
	Images *struct {
		Primary *struct {
			Large *struct {
				URL *string `json:"URL"`
			} `json:"Large"`
		} `json:"Primary"`
	} `json:"Images"`
	ItemInfo *struct {
		Title *struct {
			DisplayValue *string `json:"DisplayValue"`
		} `json:"Title"`
	} `json:"ItemInfo"`
	Offers *struct {
		Listings []struct {
			Price        *apiPrice `json:"Price"`
			SavingBasis  *apiPrice `json:"SavingBasis"`
			Availability *struct {
				Message          *string `json:"Message"`
				MaxOrderQuantity *int    `json:"MaxOrderQuantity"`
			} `json:"Availability"`
		} `json:"Listings"`
	} `json:"Offers"`
}

type getItemsResponse struct {
	ItemsResult *struct {
		Items []apiItem `json:"Items"`
	} `json:"ItemsResult"`
	Errors []apiError `json:"Errors"`
}

// GetItems fetches up to ten items. Throttling surfaces as domain.ErrRateLimited.
// Per-item errors in an otherwise successful response are logged and the items omitted.
func (c *Client) GetItems(ctx context.Context, ids []string) ([]domain.RawItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	payload := getItemsRequest{
		ItemIDs:     ids,
		ItemIDType:  "ASIN",
		PartnerTag:  c.partnerTag,
		PartnerType: "Associates",
		Marketplace: c.marketplace.Domain,
		Resources:   getItemsResources,
	}

	var resp getItemsResponse
	if err := c.post(ctx, getItemsPath, getItemsTarget, payload, &resp); err != nil {
		return nil, err
	}

	for _, e := range resp.Errors {
		if isThrottle(e) {
			return nil, fmt.Errorf("getitems: %w: %s", domain.ErrRateLimited, e.Message)
		}
		c.logger.Warn("catalog item error", "code", e.Code, "message", e.Message)
	}

	if resp.ItemsResult == nil {
		return nil, nil
	}

	items := make([]domain.RawItem, 0, len(resp.ItemsResult.Items))
	for _, it := range resp.ItemsResult.Items {
		items = append(items, it.toRaw())
	}
	return items, nil
}

func (it apiItem) toRaw() domain.RawItem {
	raw := domain.RawItem{ID: it.ASIN}
	if it.ItemInfo != nil && it.ItemInfo.Title != nil {
		raw.Title = it.ItemInfo.Title.DisplayValue
	}
	if it.Images != nil && it.Images.Primary != nil && it.Images.Primary.Large != nil {
		raw.ImageURL = it.Images.Primary.Large.URL
	}
	if it.Offers == nil {
		return raw
	}
	for _, l := range it.Offers.Listings {
		listing := domain.RawListing{
			Price:       l.Price.toRaw(),
			SavingBasis: l.SavingBasis.toRaw(),
		}
		if l.Availability != nil {
			listing.Availability = l.Availability.Message
			listing.MaxOrderQuantity = l.Availability.MaxOrderQuantity
		}
		raw.Listings = append(raw.Listings, listing)
	}
	return raw
}

func (p *apiPrice) toRaw() *domain.RawPrice {
	if p == nil || p.Amount == nil {
		return nil
	}
	return &domain.RawPrice{Amount: *p.Amount, Currency: p.Currency}
}

func (c *Client) post(ctx context.Context, path, target string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Content-Encoding", "amz-1.0")
	req.Header.Set("X-Amz-Target", target)

	sum := sha256.Sum256(body)
	if err := c.signer.SignHTTP(ctx, c.creds, req, hex.EncodeToString(sum[:]), serviceName, c.marketplace.Region, c.now()); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var failure getItemsResponse
		_ = json.Unmarshal(data, &failure)
		message := resp.Status
		if len(failure.Errors) > 0 {
			message = failure.Errors[0].Code + ": " + failure.Errors[0].Message
		}
		if resp.StatusCode == http.StatusTooManyRequests || anyThrottle(failure.Errors) {
			return fmt.Errorf("getitems: %w: %s", domain.ErrRateLimited, message)
		}
		return fmt.Errorf("getitems: unexpected status %s: %s", resp.Status, message)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isThrottle(e apiError) bool {
	if throttleCodes[e.Code] {
		return true
	}
	msg := strings.ToLower(e.Message)
	for _, needle := range throttleMessages {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

func anyThrottle(errs []apiError) bool {
	for _, e := range errs {
		if isThrottle(e) {
			return true
		}
	}
	return false
}
