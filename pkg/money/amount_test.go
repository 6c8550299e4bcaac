package money

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Amount
		err  error
	}{
		{"0", 0, nil},
		{"1", 100, nil},
		{"12.5", 1250, nil},
		{"1500.00", 150000, nil},
		{"0.01", 1, nil},
		{"-3.20", -320, nil},
		{"0.001", 0, ErrTooManyDecimals},
		{"1.005", 0, ErrTooManyDecimals},
		{"abc", 0, ErrNotANumber},
		{"", 0, ErrNotANumber},
		{"100000000000000000000", 0, ErrOutOfRange},
		{"92233720368547758.08", 0, ErrOutOfRange},
		{"92233720368547758.07", Amount(math.MaxInt64), nil},
		{"1.50000", 150, nil},
		{"1500e-3", 150, nil},
		{"0e-20000000", 0, nil},
		{"1e-20000000", 0, ErrTooManyDecimals},
		{"1e20000000", 0, ErrOutOfRange},
		{"-1e2000000000", 0, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmountJSON(t *testing.T) {
	var body struct {
		Amount Amount `json:"amount"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"amount": 1000.5}`), &body))
	assert.Equal(t, Amount(100050), body.Amount)

	require.NoError(t, json.Unmarshal([]byte(`{"amount": "25"}`), &body))
	assert.Equal(t, Amount(2500), body.Amount)

	assert.Error(t, json.Unmarshal([]byte(`{"amount": 0.125}`), &body))
	assert.Error(t, json.Unmarshal([]byte(`{"amount": true}`), &body))

	out, err := json.Marshal(struct {
		Balance Amount `json:"balance"`
	}{Balance: 450000})
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance": 4500.00}`, string(out))
}

func TestAmountJSONHugeExponentIsCheap(t *testing.T) {
	var body struct {
		Amount Amount `json:"amount"`
	}

	start := time.Now()
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"amount": 1e-20000000}`), &body), ErrTooManyDecimals)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"amount": 1e20000000}`), &body), ErrOutOfRange)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"amount": "9e-2000000000"}`), &body), ErrTooManyDecimals)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "0.00", Amount(0).String())
	assert.Equal(t, "0.07", Amount(7).String())
	assert.Equal(t, "-1.50", Amount(-150).String())
	assert.Equal(t, int64(1234), Amount(1234).Minor())
}
