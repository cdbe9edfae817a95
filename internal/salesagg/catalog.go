package salesagg

import (
	"sort"
	"strings"
)

// Product is a catalogue entry used to resolve categories for line items.
type Product struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	Variations []Variation `json:"variations,omitempty"`
}

// Variation is a sellable variant of a product.
type Variation struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Catalog indexes products by id.
type Catalog map[int64]Product

// NewCatalog builds a catalogue; later duplicates replace earlier ones.
func NewCatalog(products []Product) Catalog {
	c := make(Catalog, len(products))
	for _, p := range products {
		c[p.ID] = p
	}
	return c
}

// CategoryOf resolves the category of a line item: its own product category first, then the
// catalogue entry, then Uncategorized.
func (c Catalog) CategoryOf(item SaleItem) string {
	if item.Product != nil {
		if category := strings.TrimSpace(item.Product.Category); category != "" {
			return category
		}
		if p, ok := c[item.Product.ID]; ok {
			if category := strings.TrimSpace(p.Category); category != "" {
				return category
			}
		}
	}
	return Uncategorized
}

// Categories lists the distinct resolved categories of the items in active sales, sorted.
func Categories(sales []Sale, catalog Catalog) []string {
	seen := make(map[string]struct{})
	for _, s := range sales {
		if !s.Status.Active() {
			continue
		}
		for _, item := range s.Items {
			seen[catalog.CategoryOf(item)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for category := range seen {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// Years lists the distinct resolvable years of active sales, newest first.
func Years(sales []Sale) []int {
	seen := make(map[int]struct{})
	for _, s := range sales {
		if !s.Status.Active() {
			continue
		}
		if p := ResolvePeriod(s); p.YearOK {
			seen[p.Year] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for year := range seen {
		out = append(out, year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// CompanyNames lists the master-data companies together with the company names of active
// sales, sorted. A company without sales is still listed.
func CompanyNames(sales []Sale, companies []Company) []string {
	master := make([]string, 0, len(companies))
	for _, c := range companies {
		master = append(master, c.Name)
	}
	return distinctNames(sales, master, Sale.CompanyName)
}

// BranchNames lists the master-data branches together with the branch names of active sales,
// sorted.
func BranchNames(sales []Sale, branches []Branch) []string {
	master := make([]string, 0, len(branches))
	for _, b := range branches {
		master = append(master, b.Name)
	}
	return distinctNames(sales, master, Sale.BranchName)
}

func distinctNames(sales []Sale, master []string, name func(Sale) string) []string {
	seen := make(map[string]struct{})
	for _, n := range master {
		if n = strings.TrimSpace(n); n != "" {
			seen[n] = struct{}{}
		}
	}
	for _, s := range sales {
		if s.Status.Active() {
			seen[name(s)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ProductOption is a selectable product or variation.
type ProductOption struct {
	Key         ProductKey `json:"key"`
	DisplayName string     `json:"display_name"`
	Category    string     `json:"category"`
}

// ProductOptions lists the base product and every variation of each catalogue entry, plus any
// product key that only appears in active sales. category narrows the list unless empty or
// "all". Options are sorted by display name, then key.
func ProductOptions(sales []Sale, catalog Catalog, category string) []ProductOption {
	seen := make(map[ProductKey]ProductOption)
	for _, p := range catalog {
		cat := strings.TrimSpace(p.Category)
		if cat == "" {
			cat = Uncategorized
		}
		base := SaleItem{Product: &ProductRef{ID: p.ID, Name: p.Name, Category: cat}}
		seen[BaseKey(p.ID)] = ProductOption{Key: BaseKey(p.ID), DisplayName: base.DisplayName(), Category: cat}
		for _, v := range p.Variations {
			variant := SaleItem{Product: base.Product, Variation: &VariationRef{ID: v.ID, Label: v.Label}}
			seen[VariationKey(p.ID, v.ID)] = ProductOption{Key: VariationKey(p.ID, v.ID), DisplayName: variant.DisplayName(), Category: cat}
		}
	}
	for _, s := range sales {
		if !s.Status.Active() {
			continue
		}
		for _, item := range s.Items {
			key := KeyOf(item)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = ProductOption{Key: key, DisplayName: item.DisplayName(), Category: catalog.CategoryOf(item)}
		}
	}
	out := make([]ProductOption, 0, len(seen))
	for _, opt := range seen {
		if filterMatches(category, opt.Category) {
			out = append(out, opt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}
