package salesagg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductKeyString(t *testing.T) {
	assert.Equal(t, "7_base", BaseKey(7).String())
	assert.Equal(t, "7_12", VariationKey(7, 12).String())
}

func TestParseProductKey(t *testing.T) {
	cases := []struct {
		raw  string
		want ProductKey
		ok   bool
	}{
		{"7_base", BaseKey(7), true},
		{"7_BASE", BaseKey(7), true},
		{" 42_3 ", VariationKey(42, 3), true},
		{"7", ProductKey{}, false},
		{"_base", ProductKey{}, false},
		{"7_", ProductKey{}, false},
		{"x_base", ProductKey{}, false},
		{"7_x", ProductKey{}, false},
	}
	for _, tc := range cases {
		got, err := ParseProductKey(tc.raw)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrInvalidProductKey, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got)
	}
}

func TestProductKeyIsStructural(t *testing.T) {
	counts := map[ProductKey]int{}
	counts[KeyOf(item(7, 1, "1"))]++
	counts[KeyOf(item(7, 1, "1"))]++
	counts[KeyOf(variantItem(7, 1, "L", 1, "1"))]++
	assert.Equal(t, 2, counts[BaseKey(7)])
	assert.Equal(t, 1, counts[VariationKey(7, 1)])
	assert.NotEqual(t, BaseKey(7), VariationKey(7, 0))
}

func TestProductKeyJSON(t *testing.T) {
	raw, err := json.Marshal(ProductStat{Key: VariationKey(3, 9)})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"key":"3_9"`)

	var decoded struct {
		Key ProductKey `json:"key"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"key":"5_base"}`), &decoded))
	assert.Equal(t, BaseKey(5), decoded.Key)
}
