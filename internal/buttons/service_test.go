package buttons

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiongbi/card-ledger/internal/domain"
	"github.com/qiongbi/card-ledger/internal/logger"
	"github.com/qiongbi/card-ledger/internal/store"
	"github.com/qiongbi/card-ledger/internal/store/schema"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	m.Run()
}

// fakeOfferStore serves a fixed set of offers by id
type fakeOfferStore struct {
	store.Store

	offers map[int64]*schema.OfferLatest
}

func (f *fakeOfferStore) GetOfferByID(_ context.Context, id int64) (*schema.OfferLatest, error) {
	offer, ok := f.offers[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrOfferNotFound, id)
	}
	return offer, nil
}

func writeRegistryFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "button_config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const testRegistryJSON = `{
  "sources": {
    "yd": {
      "buttons": [
        {
          "label": "立即办理",
          "template_url": "https://shop.example.com/order/{card_id}",
          "strategy": "simple_replace"
        },
        {
          "label": "查看详情",
          "template_url": "https://shop.example.com/detail",
          "strategy": "query_param",
          "config": {"extra_params": {"utm_source": "ledger"}}
        }
      ]
    }
  }
}`

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry(writeRegistryFile(t, testRegistryJSON))
	require.NoError(t, err)

	buttons := reg.ButtonsForSource("yd")
	require.Len(t, buttons, 2)
	assert.Equal(t, "立即办理", buttons[0].Label)
	assert.Equal(t, StrategyQueryParam, buttons[1].Strategy)

	assert.Empty(t, reg.ButtonsForSource("lt"))
}

func TestLoadRegistryMissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoadRegistryInvalidJSON(t *testing.T) {
	_, err := LoadRegistry(writeRegistryFile(t, "{not json"))
	require.Error(t, err)
}

func TestButtonsForCard(t *testing.T) {
	reg, err := LoadRegistry(writeRegistryFile(t, testRegistryJSON))
	require.NoError(t, err)

	svc := NewService(&fakeOfferStore{offers: map[int64]*schema.OfferLatest{
		1: testOffer(),
	}}, reg)

	buttons, err := svc.ButtonsForCard(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, buttons, 2)
	assert.Equal(t, "立即办理", buttons[0].Label)
	assert.Equal(t, "https://shop.example.com/order/card-42", buttons[0].URL)
	assert.Contains(t, buttons[1].URL, "utm_source=ledger")
}

func TestButtonsForCardUnknownOffer(t *testing.T) {
	svc := NewService(&fakeOfferStore{offers: map[int64]*schema.OfferLatest{}}, nil)

	buttons, err := svc.ButtonsForCard(context.Background(), 404)
	require.NoError(t, err)
	require.Len(t, buttons, 1)
	assert.Equal(t, DefaultButton, buttons[0])
}

func TestButtonsForCardNoConfiguredSource(t *testing.T) {
	reg, err := LoadRegistry(writeRegistryFile(t, testRegistryJSON))
	require.NoError(t, err)

	offer := testOffer()
	offer.Source = "lt"
	svc := NewService(&fakeOfferStore{offers: map[int64]*schema.OfferLatest{1: offer}}, reg)

	buttons, err := svc.ButtonsForCard(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, buttons, 1)
	assert.Equal(t, DefaultButton, buttons[0])
}

func TestButtonsForCardNilRegistry(t *testing.T) {
	svc := NewService(&fakeOfferStore{offers: map[int64]*schema.OfferLatest{1: testOffer()}}, nil)

	buttons, err := svc.ButtonsForCard(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, buttons, 1)
	assert.Equal(t, DefaultButton, buttons[0])
}
