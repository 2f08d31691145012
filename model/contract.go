package model

import (
	"time"
)

// ContractType is one entry of the fixed contract catalogue
type ContractType struct {
	ID    string `json:"id"`
	Label string `json:"name"`
}

// RoommateTypeID is the only type with a roommate-count clause
const RoommateTypeID = "roommate"

var contractTypes = []ContractType{
	{ID: RoommateTypeID, Label: "Roommate Agreement"},
	{ID: "rental", Label: "Rental Agreement"},
	{ID: "employment", Label: "Employment Contract"},
	{ID: "service", Label: "Service Agreement"},
	{ID: "nda", Label: "Non-Disclosure Agreement"},
	{ID: "sales", Label: "Sales Contract"},
	{ID: "loan", Label: "Loan Agreement"},
	{ID: "consulting", Label: "Consulting Agreement"},
	{ID: "partnership", Label: "Partnership Agreement"},
	{ID: "other", Label: "Other Contract Type"},
}

// ContractTypes returns a copy of the catalogue in display order
func ContractTypes() []ContractType {
	out := make([]ContractType, len(contractTypes))
	copy(out, contractTypes)
	return out
}

// FindContractType looks up a catalogue entry by id
func FindContractType(id string) (ContractType, bool) {
	for _, ct := range contractTypes {
		if ct.ID == id {
			return ct, true
		}
	}
	return ContractType{}, false
}

// IsRoommate reports whether the type carries a roommate-count clause
func (t ContractType) IsRoommate() bool {
	return t.ID == RoommateTypeID
}

// Field names accepted by ContractFields.Set
const (
	FieldAmount        = "amount"
	FieldStartDate     = "startDate"
	FieldParty1        = "party1"
	FieldParty2        = "party2"
	FieldAddress       = "address"
	FieldTerm          = "term"
	FieldNotice        = "notice"
	FieldRoommateCount = "roommateCount"
)

// ContractFields holds the structured values of a contract. All values are free
// text and are never validated.
type ContractFields struct {
	Amount        string `json:"amount"`
	StartDate     string `json:"startDate"`
	Party1        string `json:"party1"`
	Party2        string `json:"party2"`
	Address       string `json:"address"`
	Term          string `json:"term"`
	Notice        string `json:"notice"`
	RoommateCount string `json:"roommateCount"`
	Today         string `json:"today"`
}

// DefaultFields returns the session-start field values
func DefaultFields(now time.Time) ContractFields {
	return ContractFields{
		Term:          "12",
		Notice:        "30",
		RoommateCount: "2",
		Today:         now.Format("January 2, 2006"),
	}
}

// Set overwrites a single editable field. It reports false for unknown names;
// Today is derived and not editable.
func (f *ContractFields) Set(name, value string) bool {
	switch name {
	case FieldAmount:
		f.Amount = value
	case FieldStartDate:
		f.StartDate = value
	case FieldParty1:
		f.Party1 = value
	case FieldParty2:
		f.Party2 = value
	case FieldAddress:
		f.Address = value
	case FieldTerm:
		f.Term = value
	case FieldNotice:
		f.Notice = value
	case FieldRoommateCount:
		f.RoommateCount = value
	default:
		return false
	}
	return true
}

// Phase is the UI step of a session
type Phase string

const (
	PhaseInput  Phase = "input"
	PhaseReview Phase = "review"
)

// SessionView is a point-in-time copy of a session's state
type SessionView struct {
	ID           string         `json:"id"`
	Phase        Phase          `json:"phase"`
	Generating   bool           `json:"generating"`
	ContractType string         `json:"contract_type,omitempty"`
	Summary      string         `json:"summary"`
	Fields       ContractFields `json:"fields"`
	Document     string         `json:"document"`
	ErrorMsg     string         `json:"error_msg,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
