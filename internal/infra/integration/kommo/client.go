package kommo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/logging"
)

var ErrNotConfigured = errors.New("kommo: api token or base url not configured")

// Client hands interested leads over to the Kommo pipeline.
type Client struct {
	apiToken   string
	baseURL    string
	statusID   int
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(apiToken, baseURL string, statusID int) *Client {
	return &Client{
		apiToken:   apiToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		statusID:   statusID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logging.New("kommo"),
	}
}

// HandOff opens a Kommo deal for lead, reusing an existing contact when one
// matches its email or phone.
func (c *Client) HandOff(ctx context.Context, lead *entity.Lead) error {
	name := lead.FullName()
	if name == "" {
		name = lead.Email
	}
	_, err := c.CreateLead(ctx, CreateLeadInput{
		Name:    name,
		Email:   lead.Email,
		Phone:   lead.Phone,
		Company: lead.Company,
		Title:   lead.Title,
		Source:  lead.ProfileURL,
	})
	return err
}

func (c *Client) CreateLead(ctx context.Context, input CreateLeadInput) (int, error) {
	if c.apiToken == "" || c.baseURL == "" {
		return 0, ErrNotConfigured
	}

	contactID, err := c.findOrCreateContact(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("kommo contact: %w", err)
	}

	dealName := input.Name
	if input.Company != "" {
		dealName = fmt.Sprintf("%s - %s", input.Name, input.Company)
	}
	deal := map[string]any{
		"name": dealName,
		"_embedded": map[string]any{
			"tags":     []map[string]any{{"name": "outreach_interested"}},
			"contacts": []map[string]any{{"id": contactID}},
		},
	}
	if c.statusID != 0 {
		deal["status_id"] = c.statusID
	}

	var result embeddedLeads
	if err := c.post(ctx, "/leads", []map[string]any{deal}, &result); err != nil {
		return 0, fmt.Errorf("kommo create lead: %w", err)
	}
	if len(result.Embedded.Leads) == 0 {
		return 0, errors.New("kommo: lead not created")
	}

	id := result.Embedded.Leads[0].ID
	c.logger.Info("deal created", "kommo_lead_id", id, "name", dealName)
	return id, nil
}

func (c *Client) findOrCreateContact(ctx context.Context, input CreateLeadInput) (int, error) {
	for _, q := range []string{input.Email, input.Phone} {
		if q == "" {
			continue
		}
		id, err := c.findContact(ctx, q)
		if err != nil {
			return 0, err
		}
		if id > 0 {
			return id, nil
		}
	}
	return c.createContact(ctx, input)
}

// findContact returns 0 when no contact matches query.
func (c *Client) findContact(ctx context.Context, query string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/contacts?query="+url.QueryEscape(query), nil)
	if err != nil {
		return 0, err
	}
	c.addAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// Kommo answers an empty search with 204
	if resp.StatusCode == http.StatusNoContent {
		return 0, nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("search contacts: %d", resp.StatusCode)
	}

	var result embeddedContacts
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}
	if len(result.Embedded.Contacts) > 0 {
		return result.Embedded.Contacts[0].ID, nil
	}
	return 0, nil
}

func (c *Client) createContact(ctx context.Context, input CreateLeadInput) (int, error) {
	var fields []map[string]any
	if input.Phone != "" {
		fields = append(fields, map[string]any{
			"field_code": "PHONE",
			"values":     []map[string]any{{"value": input.Phone, "enum_code": "WORK"}},
		})
	}
	if input.Email != "" {
		fields = append(fields, map[string]any{
			"field_code": "EMAIL",
			"values":     []map[string]any{{"value": input.Email, "enum_code": "WORK"}},
		})
	}
	contact := map[string]any{"name": input.Name}
	if len(fields) > 0 {
		contact["custom_fields_values"] = fields
	}

	var result embeddedContacts
	if err := c.post(ctx, "/contacts", []map[string]any{contact}, &result); err != nil {
		return 0, err
	}
	if len(result.Embedded.Contacts) == 0 {
		return 0, errors.New("contact id missing from response")
	}
	return result.Embedded.Contacts[0].ID, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.addAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

func (c *Client) addAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
