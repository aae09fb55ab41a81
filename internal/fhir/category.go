// Package fhir — получение FHIR-бандлов пациента и упаковка произвольных файлов в DocumentReference.
package fhir

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Category — категория клинических данных пациента.
type Category string

const (
	Immunizations Category = "IMMUNIZATIONS"
	Conditions    Category = "CONDITIONS"
	Medications   Category = "MEDICATIONS"
	Allergies     Category = "ALLERGIES"
	LabResults    Category = "LAB_RESULTS"
	Procedures    Category = "PROCEDURES"
)

var ErrUnknownCategory = errors.New("unknown FHIR category")

type categoryInfo struct {
	resourceType string
	displayName  string
}

var categories = map[Category]categoryInfo{
	Immunizations: {"Immunization", "Immunizations"},
	Conditions:    {"Condition", "Conditions"},
	Medications:   {"MedicationRequest", "Medications"},
	Allergies:     {"AllergyIntolerance", "Allergies"},
	LabResults:    {"Observation", "Lab Results"},
	Procedures:    {"Procedure", "Procedures"},
}

// ResourceType — тип ресурса FHIR R4, запрашиваемый для категории.
func (c Category) ResourceType() string { return categories[c].resourceType }

// DisplayName — человекочитаемое имя категории.
func (c Category) DisplayName() string { return categories[c].displayName }

// ParseCategory разбирает имя категории без учёта регистра.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := categories[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
