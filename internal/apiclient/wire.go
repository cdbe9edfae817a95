package apiclient

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salesboard/internal/salesagg"
)

// Wire shapes of the backend. Names are accepted in both the short form and the prefixed
// form the backend uses on nested references.

type companyDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CompanyName string `json:"companyName"`
}

func (c companyDTO) name() string { return firstNonEmpty(c.CompanyName, c.Name) }

type branchDTO struct {
	ID         int64       `json:"id"`
	CompanyID  int64       `json:"companyId"`
	Company    *companyDTO `json:"company"`
	Name       string      `json:"name"`
	BranchName string      `json:"branchName"`
	Code       string      `json:"code"`
	BranchCode string      `json:"branchCode"`
}

type variationDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

func (v variationDTO) label() string { return firstNonEmpty(v.Label, v.Name) }

type productDTO struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	ProductName string         `json:"productName"`
	Category    string         `json:"category"`
	Variations  []variationDTO `json:"variations"`
}

func (p productDTO) name() string { return firstNonEmpty(p.ProductName, p.Name) }

type saleItemDTO struct {
	Product   *productDTO     `json:"product"`
	Variation *variationDTO   `json:"variation"`
	Quantity  decimal.Decimal `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
}

type saleDTO struct {
	ID          int64           `json:"id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   string          `json:"createdAt"`
	Date        string          `json:"date"`
	Month       *int            `json:"month"`
	Year        *int            `json:"year"`
	Company     *companyDTO     `json:"company"`
	Branch      *branchDTO      `json:"branch"`
	Items       []saleItemDTO   `json:"items"`
}

type deliveryDTO struct {
	ID     int64  `json:"id"`
	SaleID int64  `json:"saleId"`
	Status string `json:"status"`
}

type alertDTO struct {
	ID       int64           `json:"id"`
	Severity string          `json:"severity"`
	Message  string          `json:"message"`
	Resolved json.RawMessage `json:"resolved"`
	Status   string          `json:"status"`
}

func (s saleDTO) toSale() salesagg.Sale {
	sale := salesagg.Sale{
		ID:          s.ID,
		Status:      salesagg.SaleStatus(s.Status),
		TotalAmount: s.TotalAmount,
		CreatedAt:   s.CreatedAt,
		Date:        s.Date,
		Year:        s.Year,
		Month:       s.Month,
		Items:       make([]salesagg.SaleItem, 0, len(s.Items)),
	}
	company := s.Company
	if company == nil && s.Branch != nil {
		company = s.Branch.Company
	}
	if company != nil {
		sale.Company = &salesagg.CompanyRef{ID: company.ID, Name: company.name()}
	}
	if s.Branch != nil {
		sale.Branch = &salesagg.BranchRef{
			ID:   s.Branch.ID,
			Name: firstNonEmpty(s.Branch.BranchName, s.Branch.Name),
			Code: firstNonEmpty(s.Branch.BranchCode, s.Branch.Code),
		}
	}
	for _, it := range s.Items {
		item := salesagg.SaleItem{Quantity: it.Quantity.Round(0).IntPart(), Amount: it.Amount}
		if item.Quantity < 0 {
			item.Quantity = 0
		}
		if it.Product != nil {
			item.Product = &salesagg.ProductRef{ID: it.Product.ID, Name: it.Product.name(), Category: it.Product.Category}
		}
		if it.Variation != nil {
			item.Variation = &salesagg.VariationRef{ID: it.Variation.ID, Label: it.Variation.label()}
		}
		sale.Items = append(sale.Items, item)
	}
	return sale
}

func (p productDTO) toProduct() salesagg.Product {
	out := salesagg.Product{ID: p.ID, Name: p.name(), Category: p.Category}
	for _, v := range p.Variations {
		out.Variations = append(out.Variations, salesagg.Variation{ID: v.ID, Label: v.label()})
	}
	return out
}

func (b branchDTO) toBranch() salesagg.Branch {
	companyID := b.CompanyID
	if companyID == 0 && b.Company != nil {
		companyID = b.Company.ID
	}
	return salesagg.Branch{
		ID:        b.ID,
		CompanyID: companyID,
		Name:      firstNonEmpty(b.BranchName, b.Name),
		Code:      firstNonEmpty(b.BranchCode, b.Code),
	}
}

// resolved accepts a boolean flag or, when absent, a RESOLVED/CLOSED status.
func (a alertDTO) toAlert() salesagg.Alert {
	alert := salesagg.Alert{ID: a.ID, Severity: a.Severity, Message: a.Message}
	var flag bool
	if len(a.Resolved) > 0 && json.Unmarshal(a.Resolved, &flag) == nil {
		alert.Resolved = flag
	} else {
		switch strings.ToUpper(strings.TrimSpace(a.Status)) {
		case "RESOLVED", "CLOSED":
			alert.Resolved = true
		}
	}
	return alert
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
