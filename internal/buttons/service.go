package buttons

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/qiongbi/card-ledger/internal/domain"
	"github.com/qiongbi/card-ledger/internal/logger"
	"github.com/qiongbi/card-ledger/internal/store"
)

// Button is a resolved call-to-action link shown to end users
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// DefaultButton is returned when an offer has no configured buttons. The
// placeholder URL tells the display layer to render the action as disabled.
var DefaultButton = Button{Label: "Order Now", URL: "#"}

// Service resolves order buttons for offers
type Service struct {
	store    store.Store
	registry Registry
}

// NewService creates a button service. The registry may be nil, in which case
// every offer gets the default button.
func NewService(s store.Store, registry Registry) *Service {
	return &Service{store: s, registry: registry}
}

// ButtonsForCard returns the ordered buttons for an offer. Offers without
// configuration, and unknown ids, resolve to the single default button.
// Buttons whose URL generation fails are skipped.
func (s *Service) ButtonsForCard(ctx context.Context, id int64) ([]Button, error) {
	offer, err := s.store.GetOfferByID(ctx, id)
	if errors.Is(err, domain.ErrOfferNotFound) {
		return []Button{DefaultButton}, nil
	}
	if err != nil {
		return nil, err
	}

	var configs []ButtonConfig
	if s.registry != nil {
		configs = s.registry.ButtonsForSource(offer.Source)
	}
	if len(configs) == 0 {
		return []Button{DefaultButton}, nil
	}

	buttons := make([]Button, 0, len(configs))
	for _, cfg := range configs {
		generated, err := strategyFor(cfg.Strategy).GenerateURL(cfg.TemplateURL, offer, cfg.Config)
		if err != nil {
			logger.WarnCtx(ctx, "button url generation failed, skipping",
				zap.Int64("offer_id", id),
				zap.String("label", cfg.Label),
				zap.Error(err),
			)
			continue
		}
		buttons = append(buttons, Button{Label: cfg.Label, URL: generated})
	}

	if len(buttons) == 0 {
		return []Button{DefaultButton}, nil
	}
	return buttons, nil
}
