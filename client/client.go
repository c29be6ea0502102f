// Package client submits signed vote transactions to a node over HTTP.
package client

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"vote-program/models"
	"vote-program/signing"
)

// APIError is returned for any non-2xx response. Receipt is set when the
// transaction executed and failed.
type APIError struct {
	StatusCode int
	Message    string
	Receipt    *models.Receipt
}

func (e *APIError) Error() string {
	return fmt.Sprintf("node returned %d: %s", e.StatusCode, e.Message)
}

type Account = models.AccountView

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Initialize creates the account owned by accountKey, paid for by payer.
func (c *Client) Initialize(ctx context.Context, payer, accountKey *ecdsa.PrivateKey) (*models.Receipt, error) {
	tx := models.NewTransaction(models.InstructionInitialize, signing.Address(accountKey), signing.Address(payer), 0)
	if err := signing.SignTransaction(tx, payer, accountKey); err != nil {
		return nil, err
	}
	return c.Submit(ctx, tx)
}

// AddVote casts voter's ballot for selection into account.
func (c *Client) AddVote(ctx context.Context, account common.Address, voter *ecdsa.PrivateKey, selection uint8) (*models.Receipt, error) {
	tx := models.NewTransaction(models.InstructionAddVote, account, signing.Address(voter), selection)
	if err := signing.SignTransaction(tx, voter); err != nil {
		return nil, err
	}
	return c.Submit(ctx, tx)
}

func (c *Client) Submit(ctx context.Context, tx *models.Transaction) (*models.Receipt, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode transaction")
	}
	var receipt models.Receipt
	if err := c.do(ctx, http.MethodPost, "/api/transactions", body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) Fetch(ctx context.Context, account common.Address) (*Account, error) {
	var acc Account
	if err := c.do(ctx, http.MethodGet, "/api/accounts/"+account.Hex(), nil, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error   string          `json:"error"`
			Receipt *models.Receipt `json:"receipt"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error, Receipt: payload.Receipt}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
