package salesagg

import (
	"strings"
	"time"
)

// Company is a master-data company.
type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Branch is a master-data branch of a company.
type Branch struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"company_id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
}

// Delivery is the minimal delivery record the dashboard counts.
type Delivery struct {
	ID     int64  `json:"id"`
	SaleID int64  `json:"sale_id"`
	Status string `json:"status"`
}

// Alert is an operational alert raised by the backend.
type Alert struct {
	ID       int64  `json:"id"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Resolved bool   `json:"resolved"`
}

// Snapshot is everything loaded from the sales backend in one pass.
type Snapshot struct {
	Sales      []Sale
	Products   []Product
	Companies  []Company
	Branches   []Branch
	Deliveries []Delivery
	Alerts     []Alert
	LoadedAt   time.Time
}

// DeliveryCounts tallies deliveries by upper-cased status.
func DeliveryCounts(deliveries []Delivery) map[string]int {
	out := make(map[string]int)
	for _, d := range deliveries {
		status := strings.ToUpper(strings.TrimSpace(d.Status))
		if status == "" {
			status = "UNKNOWN"
		}
		out[status]++
	}
	return out
}

// OpenAlerts counts alerts that are not resolved.
func OpenAlerts(alerts []Alert) int {
	n := 0
	for _, a := range alerts {
		if !a.Resolved {
			n++
		}
	}
	return n
}
