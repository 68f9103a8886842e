package onboarding

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/medimart/platform/pkg/types"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	gstPattern   = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	panPattern   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	ifscPattern  = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	bankPattern  = regexp.MustCompile(`^[0-9]{9,18}$`)
)

// ValidateStep recomputes the full error set for one wizard step. It is pure:
// it never mutates the form and identical input always yields an identical
// error map. Fields belonging to other steps are never inspected, so stale
// errors cannot accumulate across steps.
func ValidateStep(step types.WizardStep, form *types.OnboardingForm) map[string]string {
	errs := map[string]string{}

	switch step {
	case types.StepEntityInfo:
		requireField(errs, "owner_name", form.OwnerName, "Owner name is required")
		requireField(errs, "lab_name", form.LabName, "Lab name is required")
		requireField(errs, "license_number", form.LicenseNumber, "License number is required")
		if form.Email == "" {
			errs["email"] = "Email is required"
		} else if !emailPattern.MatchString(form.Email) {
			errs["email"] = "Enter a valid email address"
		}
		if form.Phone == "" {
			errs["phone"] = "Phone number is required"
		} else if !phonePattern.MatchString(form.Phone) {
			errs["phone"] = "Enter a valid 10-digit phone number"
		}
		if form.Mobile != "" && !phonePattern.MatchString(form.Mobile) {
			errs["mobile"] = "Enter a valid 10-digit mobile number"
		}
		if !form.IsKYC {
			errs["is_kyc"] = "Identity verification must be completed"
		}

	case types.StepLocationServices:
		requireField(errs, "address", form.Address, "Address is required")
		requireNumeric(errs, "latitude", form.Latitude, "Latitude is required")
		requireNumeric(errs, "longitude", form.Longitude, "Longitude is required")
		if form.GSTNumber == "" {
			errs["gst_number"] = "GST number is required"
		} else if !gstPattern.MatchString(form.GSTNumber) {
			errs["gst_number"] = "Enter a valid 15-character GST number"
		}
		if form.PANNumber == "" {
			errs["pan_number"] = "PAN number is required"
		} else if !panPattern.MatchString(form.PANNumber) {
			errs["pan_number"] = "Enter a valid 10-character PAN number"
		}
		if form.IFSCCode != "" && !ifscPattern.MatchString(form.IFSCCode) {
			errs["ifsc_code"] = "Enter a valid 11-character IFSC code"
		}
		if form.BankAccountNumber != "" && !bankPattern.MatchString(form.BankAccountNumber) {
			errs["bank_account_number"] = "Enter a valid bank account number (9-18 digits)"
		}
		if len(form.Services) == 0 {
			errs["services"] = "Add at least one service"
		}
		if form.TurnaroundTime == "" {
			errs["turnaround_time"] = "Turnaround time is required"
		} else if !validTurnaround(form.TurnaroundTime) {
			errs["turnaround_time"] = "Select a valid turnaround time"
		}
		requireField(errs, "open_time", form.OpenTime, "Opening time is required")
		requireField(errs, "close_time", form.CloseTime, "Closing time is required")

	case types.StepDocuments:
		for _, slot := range types.DocumentSlots {
			if form.Documents[slot] == nil {
				errs[string(slot)] = documentMessage(slot)
			}
		}

	case types.StepAgreements:
		if !form.Agreements.NDA {
			errs["nda"] = "The NDA must be accepted"
		}
		if !form.Agreements.Terms {
			errs["terms"] = "The terms must be accepted"
		}
		if !form.Agreements.DigitalConsent {
			errs["digital_consent"] = "Digital consent is required"
		}
		if !form.Agreements.TermsAccepted {
			errs["terms_accepted"] = "The terms of service must be accepted"
		}
	}

	return errs
}

func requireField(errs map[string]string, name, value, message string) {
	if strings.TrimSpace(value) == "" {
		errs[name] = message
	}
}

func requireNumeric(errs map[string]string, name, value, message string) {
	if strings.TrimSpace(value) == "" {
		errs[name] = message
		return
	}
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		errs[name] = "Enter a valid number"
	}
}

func validTurnaround(value string) bool {
	for _, t := range types.TurnaroundTimes {
		if t == value {
			return true
		}
	}
	return false
}

func documentMessage(slot types.DocumentSlot) string {
	switch slot {
	case types.SlotLicense:
		return "License document is required"
	case types.SlotIdentity:
		return "Identity document is required"
	case types.SlotPhoto:
		return "Photo is required"
	case types.SlotSignature:
		return "Signature is required"
	default:
		return "Document is required"
	}
}
