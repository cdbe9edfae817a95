package salesagg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const baseVariationToken = "base"

// ErrInvalidProductKey reports a product key that cannot be parsed.
var ErrInvalidProductKey = errors.New("salesagg: invalid product key")

// ProductKey identifies a product and, optionally, one of its variations. It is comparable and
// used directly as a map key; two lines of the same product with different variations are
// separate keys.
type ProductKey struct {
	ProductID    int64
	VariationID  int64
	HasVariation bool
}

// BaseKey returns the key of a product sold without a variation.
func BaseKey(productID int64) ProductKey {
	return ProductKey{ProductID: productID}
}

// VariationKey returns the key of a specific product variation.
func VariationKey(productID, variationID int64) ProductKey {
	return ProductKey{ProductID: productID, VariationID: variationID, HasVariation: true}
}

// KeyOf derives the aggregation key of a line item. Lines without a product share key 0.
func KeyOf(item SaleItem) ProductKey {
	var productID int64
	if item.Product != nil {
		productID = item.Product.ID
	}
	if item.Variation == nil {
		return BaseKey(productID)
	}
	return VariationKey(productID, item.Variation.ID)
}

// String renders the key as "{productID}_{variationID|base}".
func (k ProductKey) String() string {
	if !k.HasVariation {
		return formatID(k.ProductID) + "_" + baseVariationToken
	}
	return formatID(k.ProductID) + "_" + formatID(k.VariationID)
}

// MarshalText implements encoding.TextMarshaler.
func (k ProductKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ProductKey) UnmarshalText(text []byte) error {
	parsed, err := ParseProductKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseProductKey parses the textual form produced by String. It is meant for request
// boundaries only; aggregation never round-trips keys through strings.
func ParseProductKey(raw string) (ProductKey, error) {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, "_")
	if idx <= 0 || idx == len(raw)-1 {
		return ProductKey{}, fmt.Errorf("%w: %q", ErrInvalidProductKey, raw)
	}
	productID, err := strconv.ParseInt(raw[:idx], 10, 64)
	if err != nil || productID < 0 {
		return ProductKey{}, fmt.Errorf("%w: %q", ErrInvalidProductKey, raw)
	}
	variation := raw[idx+1:]
	if strings.EqualFold(variation, baseVariationToken) {
		return BaseKey(productID), nil
	}
	variationID, err := strconv.ParseInt(variation, 10, 64)
	if err != nil || variationID < 0 {
		return ProductKey{}, fmt.Errorf("%w: %q", ErrInvalidProductKey, raw)
	}
	return VariationKey(productID, variationID), nil
}

func formatID(v int64) string {
	return strconv.FormatInt(v, 10)
}
