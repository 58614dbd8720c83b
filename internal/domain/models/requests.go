package models

// Requests for pattern HTTP endpoints and Kafka analysis requests.

type AnalyzeRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required"`
	N         int    `query:"n" json:"n" validate:"omitempty,gte=50,lte=10000"`
	TF        string `query:"tf" json:"tf" default:"1d" validate:"oneof=1m 5m 1h 1d"`
	Narrative bool   `query:"narrative" json:"narrative"`
}

type TrendRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Days   int    `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
}
