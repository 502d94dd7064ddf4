package assembly

import (
	"time"

	"github.com/Veraticus/quotesmith/internal/model"
)

// Default quote timelines, in days from the run start.
const (
	DefaultDueInDays         = 7
	DefaultCustomerDueInDays = 14
)

// MetadataOptions are the order-level settings a run starts from.
type MetadataOptions struct {
	CustomerNote      string
	ProductionNote    string
	StatusID          string
	DueInDays         int
	CustomerDueInDays int
}

// DefaultMetadataOptions returns the standard quote timeline.
func DefaultMetadataOptions() MetadataOptions {
	return MetadataOptions{
		DueInDays:         DefaultDueInDays,
		CustomerDueInDays: DefaultCustomerDueInDays,
	}
}

// NewMetadata dates a quote relative to now.
func NewMetadata(now time.Time, opts MetadataOptions) model.OrderMetadata {
	return model.OrderMetadata{
		StartAt:        now,
		DueAt:          now.AddDate(0, 0, opts.DueInDays),
		CustomerDueAt:  now.AddDate(0, 0, opts.CustomerDueInDays),
		CustomerNote:   opts.CustomerNote,
		ProductionNote: opts.ProductionNote,
		StatusID:       opts.StatusID,
	}
}

// BuildOrder groups line items into one quote. With consolidate set, items
// sharing style, color, description, and price collapse into one line whose
// sizes are summed; the result keeps first-appearance order.
//
// The order is not validated here: the customer may still need creating.
func BuildOrder(customer model.CustomerRef, items []model.OrderLineItem, meta model.OrderMetadata, consolidate bool) model.QuoteOrder {
	if consolidate {
		items = Consolidate(items)
	}
	return model.QuoteOrder{
		Customer:  customer,
		Metadata:  meta,
		LineItems: items,
	}
}

type lineKey struct {
	style       string
	color       string
	description string
	price       string
}

// Consolidate sums the sizes of duplicate line items.
func Consolidate(items []model.OrderLineItem) []model.OrderLineItem {
	index := make(map[lineKey]int)
	out := make([]model.OrderLineItem, 0, len(items))

	for _, item := range items {
		key := lineKey{
			style:       item.Style,
			color:       item.Color,
			description: item.Description,
			price:       item.UnitPrice.String(),
		}
		i, ok := index[key]
		if !ok {
			item.Sizes = item.Sizes.Clone()
			item.SourceRows = append([]int(nil), item.SourceRows...)
			index[key] = len(out)
			out = append(out, item)
			continue
		}
		for _, sq := range item.Sizes {
			out[i].Sizes = out[i].Sizes.Add(sq.Size, sq.Quantity)
		}
		out[i].SourceRows = append(out[i].SourceRows, item.SourceRows...)
	}
	return out
}
