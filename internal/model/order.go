package model

import (
	"errors"
	"fmt"
	"time"
)

// NewCustomer is the payload used when no existing customer matches.
type NewCustomer struct {
	FirstName   string
	LastName    string
	Email       string
	CompanyName string
	Phone       string
}

// CustomerRef points at an existing customer or carries a payload to create one.
type CustomerRef struct {
	New *NewCustomer
	ID  string
}

// Resolved reports whether the reference names an existing customer.
func (c CustomerRef) Resolved() bool {
	return c.ID != ""
}

// OrderMetadata holds order-level fields sent with the quote.
type OrderMetadata struct {
	StartAt        time.Time
	DueAt          time.Time
	CustomerDueAt  time.Time
	CustomerNote   string
	ProductionNote string
	StatusID       string
}

// QuoteOrder is the aggregate submitted to the platform for one workbook.
type QuoteOrder struct {
	Customer  CustomerRef
	Metadata  OrderMetadata
	LineItems []OrderLineItem
}

// Errors returned by QuoteOrder.Validate.
var (
	ErrEmptyOrder         = errors.New("order has no line items")
	ErrUnresolvedCustomer = errors.New("order customer is not resolved")
)

// Validate checks the order invariants that must hold before submission.
func (o QuoteOrder) Validate() error {
	if len(o.LineItems) == 0 {
		return ErrEmptyOrder
	}
	if !o.Customer.Resolved() {
		return ErrUnresolvedCustomer
	}
	for i, li := range o.LineItems {
		if li.TotalQuantity() <= 0 {
			return fmt.Errorf("line item %d has no quantity", i+1)
		}
		for _, sq := range li.Sizes {
			if sq.Quantity < 0 {
				return fmt.Errorf("line item %d has negative quantity for %s", i+1, sq.Size)
			}
		}
	}
	return nil
}

// TotalQuantity returns the number of garments across all line items.
func (o QuoteOrder) TotalQuantity() int {
	total := 0
	for _, li := range o.LineItems {
		total += li.TotalQuantity()
	}
	return total
}

// CustomerCriteria identifies the customer a quote is for.
type CustomerCriteria struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	CompanyName string
	Phone       string
}

// FullName joins first and last name.
func (c CustomerCriteria) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// PlatformOrder is a quote created on the order platform.
// Line items are attached to GroupID.
type PlatformOrder struct {
	ID       string
	VisualID string
	URL      string
	GroupID  string
}
