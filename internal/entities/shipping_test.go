package entities_test

import (
	"testing"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferredOption(t *testing.T) {
	flatrate := entities.ShippingOption{CarrierCode: "flatrate", MethodCode: "flatrate", Available: true}
	free := entities.ShippingOption{CarrierCode: entities.FreeShippingCarrier, MethodCode: "freeshipping", Available: true}
	ups := entities.ShippingOption{CarrierCode: entities.CarrierUPS, MethodCode: "ground", Available: true}

	testCases := []struct {
		name    string
		options []entities.ShippingOption
		want    entities.ShippingOption
		wantOK  bool
	}{
		{
			name:    "free shipping wins regardless of position",
			options: []entities.ShippingOption{flatrate, ups, free},
			want:    free,
			wantOK:  true,
		},
		{
			name:    "first available otherwise",
			options: []entities.ShippingOption{flatrate, ups},
			want:    flatrate,
			wantOK:  true,
		},
		{
			name: "unavailable options are skipped",
			options: []entities.ShippingOption{
				{CarrierCode: "flatrate", MethodCode: "flatrate", Available: false},
				ups,
			},
			want:   ups,
			wantOK: true,
		},
		{
			name:    "no available options",
			options: []entities.ShippingOption{{CarrierCode: "flatrate", Available: false}},
			wantOK:  false,
		},
		{
			name:   "empty list",
			wantOK: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := entities.PreferredOption(tc.options)
			require.Equal(t, tc.wantOK, ok)
			if ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestShippingOption_RequiresCarrierAccount(t *testing.T) {
	assert.True(t, entities.ShippingOption{CarrierCode: entities.CarrierUPS}.RequiresCarrierAccount())
	assert.True(t, entities.ShippingOption{CarrierCode: entities.CarrierFedEx}.RequiresCarrierAccount())
	assert.False(t, entities.ShippingOption{CarrierCode: "flatrate"}.RequiresCarrierAccount())
	assert.False(t, entities.ShippingOption{CarrierCode: entities.FreeShippingCarrier}.RequiresCarrierAccount())
}

func TestShippingOption_Key(t *testing.T) {
	opt := entities.ShippingOption{CarrierCode: "ups", MethodCode: "ground"}
	assert.Equal(t, "ups:ground", opt.Key())
}
