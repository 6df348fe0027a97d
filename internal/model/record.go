package model

// Record is the normalized representation shared by all sources.
type Record struct {
	// ID is assigned sequentially by the aggregator; -1 until then.
	ID int `json:"id"`
	// ImageURL is empty when the source item carried no usable image.
	ImageURL    string `json:"imageURL"`
	Description string `json:"description"`
	// Date is an ISO date or empty.
	Date     string         `json:"date"`
	Metadata map[string]any `json:"metadata"`
}

// NewRecord returns a record with the default shape: id -1, empty strings
// and an empty (non-nil) metadata map.
func NewRecord() Record {
	return Record{ID: -1, Metadata: map[string]any{}}
}
