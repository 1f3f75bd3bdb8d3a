package domain

// Statistics aggregates task counts over the whole collection. The JSON
// casing is part of the public API contract.
type Statistics struct {
	Total      int `json:"Total"`
	Pending    int `json:"Pending"`
	InProgress int `json:"InProgress"`
	Completed  int `json:"Completed"`
	Cancelled  int `json:"Cancelled"`
	Overdue    int `json:"Overdue"`
}
