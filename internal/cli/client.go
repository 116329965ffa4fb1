package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"ffarm/internal/farm"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx reply from the farm API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

type Registration struct {
	Account farm.Account `json:"account"`
	Created bool         `json:"created"`
}

type AccountSummary struct {
	Account farm.Account `json:"account"`
	Balance int64        `json:"balance"`
}

func accountPath(accountID int64, suffix string) string {
	return fmt.Sprintf("/v1/accounts/%d%s", accountID, suffix)
}

func (c *Client) Register(ctx context.Context, chatID, username string) (Registration, error) {
	var out Registration
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/accounts", map[string]any{
		"chat_id":  chatID,
		"username": username,
	}, &out)
	return out, err
}

func (c *Client) Account(ctx context.Context, accountID int64) (AccountSummary, error) {
	var out AccountSummary
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(accountID, ""), nil, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context, accountID int64) (farm.FarmStatus, error) {
	var out farm.FarmStatus
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(accountID, "/status"), nil, &out)
	return out, err
}

func (c *Client) Ledger(ctx context.Context, accountID int64) ([]farm.LedgerEntry, error) {
	var out struct {
		Entries []farm.LedgerEntry `json:"entries"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(accountID, "/ledger"), nil, &out)
	return out.Entries, err
}

// PlantingOptions lists the plants the account may sow. An empty category
// lists every unlocked plant.
func (c *Client) PlantingOptions(ctx context.Context, accountID int64, category string) ([]farm.PlantDefinition, error) {
	path := accountPath(accountID, "/plants")
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var out struct {
		Plants []farm.PlantDefinition `json:"plants"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out.Plants, err
}

func (c *Client) MaxPlantable(ctx context.Context, accountID, plantID int64) (farm.Plantable, error) {
	var out farm.Plantable
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(accountID, fmt.Sprintf("/plants/%d/max", plantID)), nil, &out)
	return out, err
}

// Plant sends the raw quantity text; the server accepts "max" or a number.
func (c *Client) Plant(ctx context.Context, accountID, plantID int64, quantity string) (farm.PlantResult, error) {
	var out farm.PlantResult
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(accountID, "/plant"), map[string]any{
		"plant_id": plantID,
		"quantity": quantity,
	}, &out)
	return out, err
}

func (c *Client) Harvest(ctx context.Context, accountID int64) (farm.HarvestResult, error) {
	var out farm.HarvestResult
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(accountID, "/harvest"), nil, &out)
	return out, err
}

func (c *Client) NextUpgrade(ctx context.Context, accountID int64, category string) (farm.UpgradeOffer, error) {
	var out farm.UpgradeOffer
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(accountID, "/upgrades/"+url.PathEscape(category)+"/next"), nil, &out)
	return out, err
}

func (c *Client) CropUnlocks(ctx context.Context, accountID int64) ([]farm.CropUnlock, error) {
	var out struct {
		Unlocks []farm.CropUnlock `json:"unlocks"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(accountID, "/upgrades/crops"), nil, &out)
	return out.Unlocks, err
}

func (c *Client) BuyUpgrade(ctx context.Context, accountID, upgradeID int64) (farm.UpgradeResult, error) {
	var out farm.UpgradeResult
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(accountID, "/upgrades"), map[string]any{
		"upgrade_id": upgradeID,
	}, &out)
	return out, err
}

func (c *Client) SetManager(ctx context.Context, accountID int64, on bool) (farm.Account, error) {
	var out struct {
		Account farm.Account `json:"account"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(accountID, "/manager"), map[string]any{"on": on}, &out)
	return out.Account, err
}

func (c *Client) AutoPlant(ctx context.Context, accountID int64) (farm.AutoPlantPreference, error) {
	var out farm.AutoPlantPreference
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(accountID, "/autoplant"), nil, &out)
	return out, err
}

func (c *Client) SetAutoPlant(ctx context.Context, accountID, plantID int64) (farm.AutoPlantPreference, error) {
	var out farm.AutoPlantPreference
	err := c.jsonRequest(ctx, http.MethodPut, accountPath(accountID, "/autoplant"), map[string]any{"plant_id": plantID}, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context) ([]farm.LeaderboardRow, error) {
	var out struct {
		Leaderboard []farm.LeaderboardRow `json:"leaderboard"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/leaderboard", nil, &out)
	return out.Leaderboard, err
}

func (c *Client) Announce(ctx context.Context, accountID int64, message string) (int, error) {
	var out struct {
		Delivered int `json:"delivered"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(accountID, "/announcements"), map[string]any{"message": message}, &out)
	return out.Delivered, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
