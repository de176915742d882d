package model

import "fmt"

// Counter names. Each sequence advances independently.
const (
	SequenceOrderInvoice = "orderInvoice"
	SequenceReportRef    = "reportRef"
	SequenceSKU          = "skuCounter"
)

var sequencePrefixes = map[string]string{
	SequenceOrderInvoice: "INV",
	SequenceReportRef:    "RPT",
	SequenceSKU:          "SKU",
}

// Reference is a number minted from a named counter.
// Fallback is set when the counter was unavailable and Value holds Unix milliseconds instead.
type Reference struct {
	Sequence string `json:"sequence"`
	Value    int64  `json:"value"`
	Fallback bool   `json:"fallback"`
}

// String formats the reference as PREFIX-000042, or PREFIX-T<millis> for fallback values.
func (r Reference) String() string {
	prefix, ok := sequencePrefixes[r.Sequence]
	if !ok {
		prefix = "REF"
	}
	if r.Fallback {
		return fmt.Sprintf("%s-T%d", prefix, r.Value)
	}
	return fmt.Sprintf("%s-%06d", prefix, r.Value)
}
