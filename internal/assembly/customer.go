package assembly

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/service"
)

// ResolveCustomer picks the customer a quote is for. An explicit ID wins;
// otherwise the platform is searched for an exact match, and a new-customer
// payload is returned when nothing matches. A nil finder skips the lookup.
func ResolveCustomer(ctx context.Context, finder service.CustomerFinder, criteria model.CustomerCriteria) (model.CustomerRef, error) {
	if id := strings.TrimSpace(criteria.ID); id != "" {
		return model.CustomerRef{ID: id}, nil
	}

	criteria.Email = strings.TrimSpace(criteria.Email)
	if criteria.Email == "" {
		return model.CustomerRef{}, fmt.Errorf("%w: customer email or id is required", common.ErrValidation)
	}

	if finder != nil {
		id, found, err := finder.FindCustomer(ctx, criteria)
		if err != nil {
			return model.CustomerRef{}, fmt.Errorf("looking up customer %s: %w", criteria.Email, err)
		}
		if found {
			return model.CustomerRef{ID: id}, nil
		}
	}

	return model.CustomerRef{New: &model.NewCustomer{
		FirstName:   strings.TrimSpace(criteria.FirstName),
		LastName:    strings.TrimSpace(criteria.LastName),
		Email:       criteria.Email,
		CompanyName: strings.TrimSpace(criteria.CompanyName),
		Phone:       strings.TrimSpace(criteria.Phone),
	}}, nil
}
