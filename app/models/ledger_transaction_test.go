package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidReason(t *testing.T) {
	for _, reason := range []string{
		ReasonSignupGrant, ReasonMarketingGrant, ReasonPromoRedemption,
		ReasonGenerationDebit, ReasonAdminAdjustment,
	} {
		assert.True(t, ValidReason(reason), reason)
	}
	assert.False(t, ValidReason("lottery_win"))
	assert.False(t, ValidReason(""))
}

func TestTransactionMetadataValidateFor(t *testing.T) {
	tests := []struct {
		name    string
		reason  string
		meta    TransactionMetadata
		wantErr bool
	}{
		{name: "signup grant needs nothing", reason: ReasonSignupGrant, meta: TransactionMetadata{}},
		{name: "marketing grant needs token", reason: ReasonMarketingGrant, meta: TransactionMetadata{}, wantErr: true},
		{name: "marketing grant with token", reason: ReasonMarketingGrant, meta: TransactionMetadata{LinkToken: "launch2026"}},
		{name: "promo needs token", reason: ReasonPromoRedemption, meta: TransactionMetadata{}, wantErr: true},
		{name: "debit needs job id", reason: ReasonGenerationDebit, meta: TransactionMetadata{}, wantErr: true},
		{name: "debit with job id", reason: ReasonGenerationDebit, meta: TransactionMetadata{JobID: "job-42"}},
		{name: "adjustment needs admin id", reason: ReasonAdminAdjustment, meta: TransactionMetadata{Note: "goodwill"}, wantErr: true},
		{name: "adjustment with admin id", reason: ReasonAdminAdjustment, meta: TransactionMetadata{AdminID: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.ValidateFor(tt.reason)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransactionMetadataEncode(t *testing.T) {
	var nilMeta *TransactionMetadata
	out, err := nilMeta.Encode()
	require.NoError(t, err)
	assert.Equal(t, "", out)

	out, err = (&TransactionMetadata{}).Encode()
	require.NoError(t, err)
	assert.Equal(t, "", out)

	meta := &TransactionMetadata{LinkToken: "launch2026", ReferrerURL: "https://x.com/ad"}
	out, err = meta.Encode()
	require.NoError(t, err)

	var decoded TransactionMetadata
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, *meta, decoded)
}
