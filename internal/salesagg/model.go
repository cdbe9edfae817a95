// Package salesagg derives sales performance views from an in-memory list of sales.
package salesagg

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SaleStatus is the lifecycle status reported by the sales backend.
type SaleStatus string

const (
	StatusConfirmed SaleStatus = "CONFIRMED"
	StatusInvoiced  SaleStatus = "INVOICED"
	StatusPending   SaleStatus = "PENDING"
	StatusCancelled SaleStatus = "CANCELLED"
)

// Active reports whether the status counts toward revenue and quantity.
func (s SaleStatus) Active() bool {
	switch SaleStatus(strings.ToUpper(strings.TrimSpace(string(s)))) {
	case StatusConfirmed, StatusInvoiced:
		return true
	default:
		return false
	}
}

// Display names used when a reference is missing from a record.
const (
	UnknownProduct = "Unknown Product"
	UnknownBranch  = "Unknown Branch"
	UnknownCompany = "Unknown Company"
	Uncategorized  = "Uncategorized"
)

// CompanyRef is the company a sale was booked under.
type CompanyRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BranchRef is the branch a sale was booked under.
type BranchRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// ProductRef is the product sold on a line item.
type ProductRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// VariationRef identifies a product variation on a line item.
type VariationRef struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Sale is a read-only sale record. CreatedAt and Date hold the raw timestamps as received;
// Year and Month, when present, take precedence over parsing them.
type Sale struct {
	ID          int64           `json:"id"`
	Status      SaleStatus      `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   string          `json:"created_at,omitempty"`
	Date        string          `json:"date,omitempty"`
	Year        *int            `json:"year,omitempty"`
	Month       *int            `json:"month,omitempty"`
	Company     *CompanyRef     `json:"company,omitempty"`
	Branch      *BranchRef      `json:"branch,omitempty"`
	Items       []SaleItem      `json:"items"`
}

// SaleItem is a single line of a sale. Amount is the authoritative line revenue.
type SaleItem struct {
	Product   *ProductRef     `json:"product,omitempty"`
	Variation *VariationRef   `json:"variation,omitempty"`
	Quantity  int64           `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
}

// CompanyName returns the company name or the unknown sentinel.
func (s Sale) CompanyName() string {
	if s.Company == nil || strings.TrimSpace(s.Company.Name) == "" {
		return UnknownCompany
	}
	return s.Company.Name
}

// BranchName returns the branch name or the unknown sentinel.
func (s Sale) BranchName() string {
	if s.Branch == nil || strings.TrimSpace(s.Branch.Name) == "" {
		return UnknownBranch
	}
	return s.Branch.Name
}

func (s Sale) companyID() int64 {
	if s.Company == nil {
		return 0
	}
	return s.Company.ID
}

func (s Sale) branchRef() BranchRef {
	if s.Branch == nil {
		return BranchRef{Name: UnknownBranch}
	}
	ref := *s.Branch
	if strings.TrimSpace(ref.Name) == "" {
		ref.Name = UnknownBranch
	}
	return ref
}

// ProductName returns the product name or the unknown sentinel.
func (i SaleItem) ProductName() string {
	if i.Product == nil || strings.TrimSpace(i.Product.Name) == "" {
		return UnknownProduct
	}
	return i.Product.Name
}

// DisplayName renders "Product (Variation)" when the line has a variation.
func (i SaleItem) DisplayName() string {
	name := i.ProductName()
	if i.Variation == nil {
		return name
	}
	label := strings.TrimSpace(i.Variation.Label)
	if label == "" {
		label = "#" + formatID(i.Variation.ID)
	}
	return name + " (" + label + ")"
}

// MonthlyBucket accumulates active sales for one calendar month.
type MonthlyBucket struct {
	Month   int             `json:"month"`
	Label   string          `json:"label"`
	Revenue decimal.Decimal `json:"revenue"`
	Count   int             `json:"count"`
}

// ProductStat aggregates one product/variation pair.
type ProductStat struct {
	Key              ProductKey      `json:"key"`
	DisplayName      string          `json:"display_name"`
	Category         string          `json:"category"`
	Revenue          decimal.Decimal `json:"revenue"`
	Quantity         int64           `json:"quantity"`
	TransactionCount int             `json:"transaction_count"`
}

// BranchStat aggregates the sales of one branch.
type BranchStat struct {
	BranchID          int64           `json:"branch_id"`
	Name              string          `json:"name"`
	Code              string          `json:"code"`
	Revenue           decimal.Decimal `json:"revenue"`
	Quantity          int64           `json:"quantity"`
	SalesCount        int             `json:"sales_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

// CompanyStat aggregates the sales of one company.
type CompanyStat struct {
	CompanyID         int64           `json:"company_id"`
	Name              string          `json:"name"`
	Revenue           decimal.Decimal `json:"revenue"`
	SalesCount        int             `json:"sales_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

// ProductSummary holds the statistics of a single selected product key.
type ProductSummary struct {
	Key           ProductKey      `json:"key"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalQuantity int64           `json:"total_quantity"`
	Transactions  int             `json:"transactions"`
	AvgPerUnit    decimal.Decimal `json:"avg_per_unit"`
}

// Summary is the headline card set for a window.
type Summary struct {
	Revenue           decimal.Decimal `json:"revenue"`
	SalesCount        int             `json:"sales_count"`
	Quantity          int64           `json:"quantity"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	ProductsSold      int             `json:"products_sold"`
}

// ratio divides num by den, yielding zero when den is zero.
func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}
