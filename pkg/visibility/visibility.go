package visibility

import (
	"strings"

	"github.com/google/uuid"

	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
	"github.com/estatehubhq/estatehub-backend/pkg/stage"
)

// LeadAccessInput drives the shared access checks for lead-scoped queries.
type LeadAccessInput struct {
	Lead       *models.Lead
	ViewerID   uuid.UUID
	ViewerRole enums.ActorRole
}

// EnsureLeadVisible enforces canonical role scoping so leads never leak
// across parties. Failures surface as not-found rather than forbidden.
func EnsureLeadVisible(input LeadAccessInput) error {
	if input.Lead == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
	}
	if input.ViewerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "viewer is required")
	}

	switch input.ViewerRole {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleBuyer:
		if input.Lead.BuyerID == input.ViewerID {
			return nil
		}
	case enums.ActorRoleSeller:
		if input.Lead.SellerID == input.ViewerID {
			return nil
		}
	case enums.ActorRoleAgent:
		if input.Lead.AgentID != nil && *input.Lead.AgentID == input.ViewerID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
}

// TransactionAccessInput drives the shared access checks for
// transaction-scoped queries.
type TransactionAccessInput struct {
	Transaction *models.Transaction
	ViewerID    uuid.UUID
	ViewerRole  enums.ActorRole
}

// EnsureTransactionVisible applies the same role scoping as leads to the
// transaction's recorded parties.
func EnsureTransactionVisible(input TransactionAccessInput) error {
	if input.Transaction == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if input.ViewerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "viewer is required")
	}

	switch input.ViewerRole {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleBuyer:
		if input.Transaction.BuyerID == input.ViewerID {
			return nil
		}
	case enums.ActorRoleSeller:
		if input.Transaction.SellerID == input.ViewerID {
			return nil
		}
	case enums.ActorRoleAgent:
		if input.Transaction.AgentID != nil && *input.Transaction.AgentID == input.ViewerID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
}

// CanViewContact reports whether the viewer may see unredacted buyer contact
// fields. The buyer always sees their own details, admin sees everything;
// sellers and agents wait until the linked transaction clears DEPOSIT_PAID.
func CanViewContact(input LeadAccessInput, current stage.Stage) bool {
	if input.Lead == nil {
		return false
	}
	switch input.ViewerRole {
	case enums.ActorRoleAdmin:
		return true
	case enums.ActorRoleBuyer:
		return input.Lead.BuyerID == input.ViewerID
	case enums.ActorRoleSeller, enums.ActorRoleAgent:
		return !stage.ShouldBlur(current.String())
	default:
		return false
	}
}

// Contact is the redacted-or-not projection of a lead's buyer fields.
type Contact struct {
	Name     string
	Email    string
	Phone    string
	Redacted bool
}

// ContactFor returns the buyer contact fields for the viewer, masked when the
// disclosure gate has not been cleared. Raw values never cross the API
// boundary before the gate opens.
func ContactFor(input LeadAccessInput, current stage.Stage) Contact {
	if input.Lead == nil {
		return Contact{Redacted: true}
	}
	if CanViewContact(input, current) {
		return Contact{
			Name:  input.Lead.BuyerName,
			Email: input.Lead.BuyerEmail,
			Phone: input.Lead.BuyerPhone,
		}
	}
	return Contact{
		Name:     MaskName(input.Lead.BuyerName),
		Email:    MaskEmail(input.Lead.BuyerEmail),
		Phone:    MaskPhone(input.Lead.BuyerPhone),
		Redacted: true,
	}
}

// MaskName keeps the first rune of each word.
func MaskName(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	masked := make([]string, 0, len(words))
	for _, w := range words {
		runes := []rune(w)
		masked = append(masked, string(runes[0])+"***")
	}
	return strings.Join(masked, " ")
}

// MaskEmail keeps the first rune of the local part and the domain TLD.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local := []rune(email[:at])
	domain := email[at+1:]
	tld := ""
	if dot := strings.LastIndex(domain, "."); dot != -1 {
		tld = domain[dot:]
	}
	return string(local[0]) + "***@***" + tld
}

// MaskPhone keeps the last two digits.
func MaskPhone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 2 {
		return "***"
	}
	return "*** *** **" + string(digits[len(digits)-2:])
}
