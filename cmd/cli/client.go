package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iho/badbank/internal/adapter/http/dto"
	"github.com/iho/badbank/internal/adapter/http/middleware"
)

// apiClient talks to the badbank HTTP API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Code    string
	Message string
	Body    []byte
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (status %d)", e.Code, e.Status)
}

type requestOption func(*http.Request)

func withIdempotencyKey(key string) requestOption {
	return func(r *http.Request) {
		if key != "" {
			r.Header.Set(middleware.IdempotencyKeyHeader, key)
		}
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out any, opts ...requestOption) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode), Body: data}
		var errResp dto.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			apiErr.Code = errResp.Error
			apiErr.Message = errResp.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) Signup(ctx context.Context, req dto.SignupRequest) (*dto.SignupResponse, error) {
	var resp dto.SignupResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/signup", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	var resp dto.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Me(ctx context.Context) (*dto.UserResponse, error) {
	var resp dto.UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Balance(ctx context.Context) (*dto.BalanceResponse, error) {
	var resp dto.BalanceResponse
	if err := c.do(ctx, http.MethodGet, "/api/users/balance", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Deposit(ctx context.Context, req dto.DepositRequest, key string) (*dto.OperationResponse, error) {
	var resp dto.OperationResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/deposit", req, &resp, withIdempotencyKey(key)); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Withdraw(ctx context.Context, req dto.WithdrawRequest, key string) (*dto.OperationResponse, error) {
	var resp dto.OperationResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/withdraw", req, &resp, withIdempotencyKey(key)); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Transfer(ctx context.Context, req dto.TransferRequest, key string) (*dto.OperationResponse, error) {
	var resp dto.OperationResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/transfer", req, &resp, withIdempotencyKey(key)); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Transactions(ctx context.Context, limit, offset int) ([]dto.TransactionResponse, error) {
	path := fmt.Sprintf("/api/users/transactions?limit=%d&offset=%d", limit, offset)
	var resp []dto.TransactionResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *apiClient) Consistency(ctx context.Context) (*dto.ConsistencyResponse, error) {
	var resp dto.ConsistencyResponse
	err := c.do(ctx, http.MethodGet, "/api/ledger/consistency", nil, &resp)
	if err == nil {
		return &resp, nil
	}

	// Drift is reported as 409 with the comparison in the body.
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict &&
		json.Unmarshal(apiErr.Body, &resp) == nil && resp.UserID != "" {
		return &resp, nil
	}
	return nil, err
}
