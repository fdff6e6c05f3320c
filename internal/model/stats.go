package model

// StatsBucket is one day of fraud/clean counts in the rolling window.
type StatsBucket struct {
	Day        string `json:"ts"` // YYYY-MM-DD
	CountFraud int    `json:"count_fraud"`
	CountClean int    `json:"count_clean"`
}

// StatsTotals is the single totals row over the whole window.
type StatsTotals struct {
	FraudTotal    int `json:"fraud_total"`
	CleanTotal    int `json:"clean_total"`
	PendingTotal  int `json:"pending_total"`
	ApprovedTotal int `json:"approved_total"`
	RejectedTotal int `json:"rejected_total"`
}

// Stats is the aggregate query result served to the dashboard.
type Stats struct {
	Timeseries []StatsBucket `json:"timeseries"`
	Totals     StatsTotals   `json:"totals"`
}
