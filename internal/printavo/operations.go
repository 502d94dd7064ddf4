package printavo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/quotesmith/internal/model"
)

const contactsQuery = `query ContactsSearch($query: String!) {
  contacts(query: $query) {
    data {
      id
      firstName
      lastName
      email
      companyName
    }
  }
}`

const customerCreateMutation = `mutation CustomerCreate($input: CustomerCreateInput!) {
  customerCreate(input: $input) {
    id
    primaryContact {
      id
    }
  }
}`

const quoteCreateMutation = `mutation QuoteCreate($input: QuoteCreateInput!) {
  quoteCreate(input: $input) {
    id
    visualId
    url
  }
}`

const lineItemGroupCreateMutation = `mutation LineItemGroupCreate($parentId: ID!, $input: LineItemGroupCreateInput!) {
  lineItemGroupCreate(parentId: $parentId, input: $input) {
    id
    position
  }
}`

const statusUpdateMutation = `mutation StatusUpdate($parentId: ID!, $statusId: ID!) {
  statusUpdate(parentId: $parentId, statusId: $statusId) {
    __typename
  }
}`

const lineItemCreateMutation = `mutation LineItemCreate($lineItemGroupId: ID!, $input: LineItemCreateInput!) {
  lineItemCreate(lineItemGroupId: $lineItemGroupId, input: $input) {
    id
  }
}`

type contact struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	CompanyName string `json:"companyName"`
}

// FindCustomer searches contacts by email and returns the first exact match.
// When a name is given it must match too.
func (c *Client) FindCustomer(ctx context.Context, criteria model.CustomerCriteria) (string, bool, error) {
	var data struct {
		Contacts struct {
			Data []contact `json:"data"`
		} `json:"contacts"`
	}

	vars := map[string]any{"query": criteria.Email}
	if err := c.query(ctx, "contacts", contactsQuery, vars, &data); err != nil {
		return "", false, err
	}

	for _, ct := range data.Contacts.Data {
		if matchesContact(ct, criteria) {
			c.logger.Debug("matched existing contact", "contact_id", ct.ID, "email", ct.Email)
			return ct.ID, true, nil
		}
	}
	return "", false, nil
}

func matchesContact(ct contact, criteria model.CustomerCriteria) bool {
	if !strings.EqualFold(strings.TrimSpace(ct.Email), strings.TrimSpace(criteria.Email)) {
		return false
	}
	if criteria.FirstName != "" && !strings.EqualFold(ct.FirstName, criteria.FirstName) {
		return false
	}
	if criteria.LastName != "" && !strings.EqualFold(ct.LastName, criteria.LastName) {
		return false
	}
	return true
}

// CreateCustomer creates a customer and returns its primary contact ID, which
// is what quotes are attached to.
func (c *Client) CreateCustomer(ctx context.Context, customer model.NewCustomer) (string, error) {
	company := customer.CompanyName
	if company == "" {
		company = strings.TrimSpace(customer.FirstName + " " + customer.LastName)
	}
	if company == "" {
		company = customer.Email
	}

	vars := map[string]any{
		"input": map[string]any{
			"companyName": company,
			"primaryContact": map[string]any{
				"firstName": customer.FirstName,
				"lastName":  customer.LastName,
				"email":     customer.Email,
				"phone":     customer.Phone,
			},
		},
	}

	var data struct {
		CustomerCreate struct {
			ID             string `json:"id"`
			PrimaryContact struct {
				ID string `json:"id"`
			} `json:"primaryContact"`
		} `json:"customerCreate"`
	}
	if err := c.mutate(ctx, "customerCreate", customerCreateMutation, vars, &data); err != nil {
		return "", err
	}

	contactID := data.CustomerCreate.PrimaryContact.ID
	if contactID == "" {
		return "", fmt.Errorf("printavo customerCreate: customer %s has no primary contact", data.CustomerCreate.ID)
	}
	c.logger.Info("created customer", "customer_id", data.CustomerCreate.ID, "contact_id", contactID)
	return contactID, nil
}

// CreateOrder creates a quote for a contact and the line item group that line
// items are added to. A status is applied when meta.StatusID is set.
//
// If the quote was created but a later step fails, the returned order still
// carries the quote ID.
func (c *Client) CreateOrder(ctx context.Context, contactID string, meta model.OrderMetadata) (model.PlatformOrder, error) {
	input := map[string]any{
		"contact":       map[string]any{"id": contactID},
		"startAt":       formatTime(meta.StartAt),
		"dueAt":         formatTime(meta.DueAt),
		"customerDueAt": formatTime(meta.CustomerDueAt),
		"customerNote":  meta.CustomerNote,
	}
	if meta.ProductionNote != "" {
		input["productionNote"] = meta.ProductionNote
	}

	var quote struct {
		QuoteCreate struct {
			ID       string `json:"id"`
			VisualID string `json:"visualId"`
			URL      string `json:"url"`
		} `json:"quoteCreate"`
	}
	if err := c.mutate(ctx, "quoteCreate", quoteCreateMutation, map[string]any{"input": input}, &quote); err != nil {
		return model.PlatformOrder{}, err
	}

	order := model.PlatformOrder{
		ID:       quote.QuoteCreate.ID,
		VisualID: quote.QuoteCreate.VisualID,
		URL:      quote.QuoteCreate.URL,
	}
	c.logger.Info("created quote", "order_id", order.ID, "visual_id", order.VisualID)

	var group struct {
		LineItemGroupCreate struct {
			ID string `json:"id"`
		} `json:"lineItemGroupCreate"`
	}
	groupVars := map[string]any{
		"parentId": order.ID,
		"input":    map[string]any{"position": 1},
	}
	if err := c.mutate(ctx, "lineItemGroupCreate", lineItemGroupCreateMutation, groupVars, &group); err != nil {
		return order, err
	}
	order.GroupID = group.LineItemGroupCreate.ID

	if meta.StatusID != "" {
		statusVars := map[string]any{"parentId": order.ID, "statusId": meta.StatusID}
		if err := c.mutate(ctx, "statusUpdate", statusUpdateMutation, statusVars, nil); err != nil {
			return order, err
		}
	}

	return order, nil
}

// AddLineItem adds one line item to the order's group.
func (c *Client) AddLineItem(ctx context.Context, order model.PlatformOrder, position int, item model.OrderLineItem) (string, error) {
	if order.GroupID == "" {
		return "", fmt.Errorf("printavo lineItemCreate: order %s has no line item group", order.ID)
	}

	sizes := make([]map[string]any, 0, len(item.Sizes))
	for _, sq := range item.Sizes {
		if sq.Quantity <= 0 {
			continue
		}
		sizes = append(sizes, map[string]any{"size": SizeEnum(sq.Size), "count": sq.Quantity})
	}

	input := map[string]any{
		"itemNumber": item.Style,
		"color":      item.Color,
		"price":      json.Number(item.UnitPrice.String()),
		"position":   position,
		"sizes":      sizes,
	}
	if item.Description != "" {
		input["description"] = item.Description
	}

	vars := map[string]any{
		"lineItemGroupId": order.GroupID,
		"input":           input,
	}

	var data struct {
		LineItemCreate struct {
			ID string `json:"id"`
		} `json:"lineItemCreate"`
	}
	if err := c.mutate(ctx, "lineItemCreate", lineItemCreateMutation, vars, &data); err != nil {
		return "", err
	}
	return data.LineItemCreate.ID, nil
}

// SizeEnum maps a size label onto the API's size enum. Labels without an
// enum value become size_other.
func SizeEnum(size string) string {
	if enum, ok := sizeEnums[strings.ToUpper(strings.TrimSpace(size))]; ok {
		return enum
	}
	return "size_other"
}

var sizeEnums = map[string]string{
	"YXS": "size_yxs",
	"YS":  "size_ys",
	"YM":  "size_ym",
	"YL":  "size_yl",
	"YXL": "size_yxl",
	"XS":  "size_xs",
	"S":   "size_s",
	"M":   "size_m",
	"L":   "size_l",
	"XL":  "size_xl",
	"2XL": "size_2xl",
	"3XL": "size_3xl",
	"4XL": "size_4xl",
	"5XL": "size_5xl",
	"6XL": "size_6xl",
	"6M":  "size_6m",
	"12M": "size_12m",
	"18M": "size_18m",
	"24M": "size_24m",
	"2T":  "size_2t",
	"3T":  "size_3t",
	"4T":  "size_4t",
	"5T":  "size_5t",
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}
