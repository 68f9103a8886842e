package onboarding

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/medimart/platform/pkg/types"
)

// State is the full wizard state for one onboarding session: the form record,
// the step pointer, the per-field error map and the submission gate. Form and
// Step round-trip through the session store; Errors and Submitting are
// transient and rebuilt after a restore.
type State struct {
	Form       *types.OnboardingForm `json:"form"`
	Step       types.WizardStep      `json:"step"`
	Errors     map[string]string     `json:"errors"`
	Submitting bool                  `json:"submitting"`
}

// NewState creates the default wizard state for a fresh session.
func NewState() *State {
	return &State{
		Form:   NewForm(),
		Step:   types.StepFirst,
		Errors: map[string]string{},
	}
}

// NewForm creates an onboarding form with defaults. Every document slot is
// present and empty so attach/remove never has to distinguish a missing key
// from an empty one.
func NewForm() *types.OnboardingForm {
	docs := make(map[types.DocumentSlot]*types.Attachment, len(types.DocumentSlots))
	for _, slot := range types.DocumentSlots {
		docs[slot] = nil
	}
	return &types.OnboardingForm{
		Services:  []types.ServiceItem{},
		Documents: docs,
	}
}

// CloneForm deep-copies a form through JSON. Used for the pre-KYC checkpoint
// so a later rollback cannot alias live state.
func CloneForm(form *types.OnboardingForm) (*types.OnboardingForm, error) {
	raw, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("failed to clone form: %w", err)
	}
	clone := &types.OnboardingForm{}
	if err := json.Unmarshal(raw, clone); err != nil {
		return nil, fmt.Errorf("failed to clone form: %w", err)
	}
	if clone.Documents == nil {
		clone.Documents = make(map[types.DocumentSlot]*types.Attachment)
	}
	return clone, nil
}

// setField applies one named field edit to the form. Unknown names are an
// error so a typo in a client payload cannot silently vanish.
func setField(form *types.OnboardingForm, name, value string) error {
	switch name {
	case "owner_name":
		form.OwnerName = value
	case "email":
		form.Email = value
	case "phone":
		form.Phone = value
	case "mobile":
		form.Mobile = value
	case "whatsapp":
		form.WhatsApp = value
	case "contact_person":
		form.ContactPerson = value
	case "lab_name":
		form.LabName = value
	case "license_number":
		form.LicenseNumber = value
	case "registration_number":
		form.RegistrationNumber = value
	case "address":
		form.Address = value
	case "latitude":
		form.Latitude = value
	case "longitude":
		form.Longitude = value
	case "gst_number":
		form.GSTNumber = value
	case "pan_number":
		form.PANNumber = value
	case "ifsc_code":
		form.IFSCCode = value
	case "bank_account_number":
		form.BankAccountNumber = value
	case "turnaround_time":
		form.TurnaroundTime = value
	case "open_time":
		form.OpenTime = value
	case "close_time":
		form.CloseTime = value
	case "years_experience":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("years_experience must be a number")
		}
		form.YearsExperience = n
	case "home_collection":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("home_collection must be a boolean")
		}
		form.HomeCollection = b
	case "nda":
		return setBoolField(&form.Agreements.NDA, name, value)
	case "terms":
		return setBoolField(&form.Agreements.Terms, name, value)
	case "digital_consent":
		return setBoolField(&form.Agreements.DigitalConsent, name, value)
	case "terms_accepted":
		return setBoolField(&form.Agreements.TermsAccepted, name, value)
	default:
		return fmt.Errorf("unknown form field: %s", name)
	}
	return nil
}

func setBoolField(target *bool, name, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be a boolean", name)
	}
	*target = b
	return nil
}
