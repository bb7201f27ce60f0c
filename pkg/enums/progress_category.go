package enums

import "fmt"

// ProgressCategory classifies entries in a transaction's progress history.
type ProgressCategory string

const (
	ProgressCategoryAppointment ProgressCategory = "appointment"
	ProgressCategoryPayment     ProgressCategory = "payment"
	ProgressCategoryContract    ProgressCategory = "contract"
	ProgressCategoryCompletion  ProgressCategory = "completion"
	ProgressCategoryOffer       ProgressCategory = "offer"
	ProgressCategoryGeneral     ProgressCategory = "general"
)

var validProgressCategories = []ProgressCategory{
	ProgressCategoryAppointment,
	ProgressCategoryPayment,
	ProgressCategoryContract,
	ProgressCategoryCompletion,
	ProgressCategoryOffer,
	ProgressCategoryGeneral,
}

// IsValid reports whether the value is a known ProgressCategory.
func (p ProgressCategory) IsValid() bool {
	for _, candidate := range validProgressCategories {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProgressCategory converts raw input into a ProgressCategory.
func ParseProgressCategory(value string) (ProgressCategory, error) {
	for _, candidate := range validProgressCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid progress category %q", value)
}
