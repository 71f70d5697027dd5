package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	torqueErrors "github.com/harunnryd/torque/internal/errors"
	"github.com/harunnryd/torque/internal/shop"
)

const (
	DefaultTimeout   = 10 * time.Second
	maxResponseBytes = 4 << 20
)

// Client talks JSON over HTTP to the shop backend.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	Token   string
	mapper  torqueErrors.ErrorMapper
}

func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, torqueErrors.InvalidInput(fmt.Sprintf("invalid backend url %q", baseURL))
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, torqueErrors.InvalidInput(fmt.Sprintf("invalid backend url %q", baseURL))
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		HTTP:    &http.Client{Timeout: timeout},
		BaseURL: strings.TrimSuffix(parsed.String(), "/"),
		Token:   token,
		mapper:  torqueErrors.NewDefaultErrorMapper(),
	}, nil
}

var _ API = (*Client)(nil)

func (c *Client) SearchCustomers(ctx context.Context, query string) ([]shop.Customer, error) {
	var out []shop.Customer
	err := c.do(ctx, http.MethodGet, "/customers", url.Values{"search": {query}}, nil, &out)
	return out, err
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*shop.Customer, error) {
	var out shop.Customer
	if err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCustomer(ctx context.Context, in shop.Customer) (*shop.Customer, error) {
	var out shop.Customer
	if err := c.do(ctx, http.MethodPost, "/customers", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListVehicles(ctx context.Context, customerID string) ([]shop.Vehicle, error) {
	var out []shop.Vehicle
	err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID)+"/vehicles", nil, nil, &out)
	return out, err
}

func (c *Client) CreateVehicle(ctx context.Context, in shop.Vehicle) (*shop.Vehicle, error) {
	var out shop.Vehicle
	if err := c.do(ctx, http.MethodPost, "/vehicles", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateVehicle(ctx context.Context, in shop.Vehicle) (*shop.Vehicle, error) {
	var out shop.Vehicle
	if err := c.do(ctx, http.MethodPut, "/vehicles/"+url.PathEscape(in.ID), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteVehicle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/vehicles/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListInvoices(ctx context.Context, customerID string) ([]shop.Invoice, error) {
	var out []shop.Invoice
	err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID)+"/invoices", nil, nil, &out)
	return out, err
}

func (c *Client) GetInvoice(ctx context.Context, id string) (*shop.Invoice, error) {
	var out shop.Invoice
	if err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateInvoice(ctx context.Context, in shop.Invoice) (*shop.Invoice, error) {
	var out shop.Invoice
	if err := c.do(ctx, http.MethodPost, "/invoices", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateInvoice(ctx context.Context, in shop.Invoice) (*shop.Invoice, error) {
	var out shop.Invoice
	if err := c.do(ctx, http.MethodPut, "/invoices/"+url.PathEscape(in.ID), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteInvoice(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/invoices/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListNotes(ctx context.Context, customerID string) ([]shop.Note, error) {
	var out []shop.Note
	err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID)+"/notes", nil, nil, &out)
	return out, err
}

func (c *Client) SearchNotes(ctx context.Context, customerID, query string) ([]shop.Note, error) {
	var out []shop.Note
	err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID)+"/notes", url.Values{"search": {query}}, nil, &out)
	return out, err
}

func (c *Client) CreateNote(ctx context.Context, in shop.Note) (*shop.Note, error) {
	var out shop.Note
	if err := c.do(ctx, http.MethodPost, "/notes", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateNote(ctx context.Context, in shop.Note) (*shop.Note, error) {
	var out shop.Note
	if err := c.do(ctx, http.MethodPut, "/notes/"+url.PathEscape(in.ID), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) SearchImages(ctx context.Context, query string, limit int) ([]shop.Image, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []shop.Image
	err := c.do(ctx, http.MethodGet, "/images/search", q, nil, &out)
	return out, err
}

func (c *Client) SaveImage(ctx context.Context, in shop.Image) (*shop.Image, error) {
	var out shop.Image
	if err := c.do(ctx, http.MethodPost, "/images", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteImage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/images/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) QueryLogs(ctx context.Context, lq LogQuery) ([]shop.LogEntry, error) {
	q := url.Values{}
	if lq.Level != "" {
		q.Set("level", lq.Level)
	}
	if lq.Contains != "" {
		q.Set("contains", lq.Contains)
	}
	if !lq.Since.IsZero() {
		q.Set("since", lq.Since.UTC().Format(time.RFC3339))
	}
	if lq.Limit > 0 {
		q.Set("limit", strconv.Itoa(lq.Limit))
	}
	var out []shop.LogEntry
	err := c.do(ctx, http.MethodGet, "/logs", q, nil, &out)
	return out, err
}

type diagnosticRequest struct {
	Code    string       `json:"code"`
	Vehicle shop.Vehicle `json:"vehicle"`
}

func (c *Client) LookupDiagnosticCode(ctx context.Context, code string, v shop.Vehicle) (*shop.DiagnosticResult, error) {
	var out shop.DiagnosticResult
	if err := c.do(ctx, http.MethodPost, "/forum/analyze", nil, diagnosticRequest{Code: code, Vehicle: v}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return torqueErrors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return torqueErrors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Torque/1.0")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	mapper := c.mapper
	if mapper == nil {
		mapper = torqueErrors.NewDefaultErrorMapper()
	}

	resp, err := client.Do(req)
	if err != nil {
		return torqueErrors.WrapWithCategory(err, fmt.Sprintf("%s %s", method, path), mapper.MapError(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return torqueErrors.Wrap(err, "read response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return mapper.MapStatus(resp.StatusCode, errorMessage(raw))
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return torqueErrors.WrapWithCategory(err, "decode response", torqueErrors.ErrInternal)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		for _, s := range []string{eb.Message, eb.Error, eb.Detail} {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
