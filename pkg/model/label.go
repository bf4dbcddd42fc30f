package model

// Provenance records how a label was assigned.
type Provenance string

const (
	// ProvenanceManual marks a label set by the annotator.
	ProvenanceManual Provenance = "manual"
	// ProvenanceAuto marks a label proposed by the classifier.
	ProvenanceAuto Provenance = "auto"
)

// Valid reports whether p is a known provenance.
func (p Provenance) Valid() bool {
	return p == ProvenanceManual || p == ProvenanceAuto
}

// LabelRecord is one feature's label within a stage: the category plus its
// provenance. Keeping both in a single record makes the category/provenance
// pairing structurally impossible to desynchronize. A feature absent from
// the label map is "unsure" (unlabeled).
type LabelRecord struct {
	Category   Category   `json:"category"`
	Provenance Provenance `json:"provenance"`
}

// Manual is a convenience constructor for an annotator-assigned label.
func Manual(cat Category) LabelRecord {
	return LabelRecord{Category: cat, Provenance: ProvenanceManual}
}

// Auto is a convenience constructor for a classifier-proposed label.
func Auto(cat Category) LabelRecord {
	return LabelRecord{Category: cat, Provenance: ProvenanceAuto}
}
