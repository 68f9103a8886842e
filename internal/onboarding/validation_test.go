package onboarding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medimart/platform/pkg/types"
)

func TestValidateStepIsPure(t *testing.T) {
	form := NewForm()
	form.Email = "bad"

	first := ValidateStep(types.StepEntityInfo, form)
	second := ValidateStep(types.StepEntityInfo, form)

	assert.Equal(t, first, second)
	assert.Equal(t, "bad", form.Email)
}

func TestPhoneValidation(t *testing.T) {
	cases := []struct {
		phone string
		valid bool
	}{
		{"9876543210", true},
		{"6000000000", true},
		{"5876543210", false}, // must start 6-9
		{"98765432", false},   // too short
		{"98765432101", false},
		{"98765abc10", false},
	}
	for _, tc := range cases {
		form := NewForm()
		form.Phone = tc.phone
		errs := ValidateStep(types.StepEntityInfo, form)
		if tc.valid {
			assert.NotContains(t, errs, "phone", tc.phone)
		} else {
			assert.Contains(t, errs, "phone", tc.phone)
		}
	}
}

func TestGSTAndPANValidation(t *testing.T) {
	form := NewForm()
	form.GSTNumber = "27ABCDE1234F1Z5"
	form.PANNumber = "ABCDE1234F"
	errs := ValidateStep(types.StepLocationServices, form)
	assert.NotContains(t, errs, "gst_number")
	assert.NotContains(t, errs, "pan_number")

	form.GSTNumber = "27abcde1234FZ5"
	form.PANNumber = "ABCDE12345"
	errs = ValidateStep(types.StepLocationServices, form)
	assert.Contains(t, errs, "gst_number")
	assert.Contains(t, errs, "pan_number")
}

func TestOptionalBankFieldsValidatedOnlyWhenPresent(t *testing.T) {
	form := NewForm()
	errs := ValidateStep(types.StepLocationServices, form)
	assert.NotContains(t, errs, "ifsc_code")
	assert.NotContains(t, errs, "bank_account_number")

	form.IFSCCode = "HDFC0001234"
	form.BankAccountNumber = "123456789012"
	errs = ValidateStep(types.StepLocationServices, form)
	assert.NotContains(t, errs, "ifsc_code")
	assert.NotContains(t, errs, "bank_account_number")

	form.IFSCCode = "HDFC1001234"   // fifth character must be zero
	form.BankAccountNumber = "1234" // too short
	errs = ValidateStep(types.StepLocationServices, form)
	assert.Contains(t, errs, "ifsc_code")
	assert.Contains(t, errs, "bank_account_number")
}

func TestLatitudeLongitudeMustBeNumeric(t *testing.T) {
	form := NewForm()
	form.Latitude = "18.52"
	form.Longitude = "north"
	errs := ValidateStep(types.StepLocationServices, form)
	assert.NotContains(t, errs, "latitude")
	assert.Contains(t, errs, "longitude")
}

func TestTurnaroundTimeMustBeKnown(t *testing.T) {
	form := NewForm()
	form.TurnaroundTime = "whenever"
	errs := ValidateStep(types.StepLocationServices, form)
	assert.Contains(t, errs, "turnaround_time")

	form.TurnaroundTime = "48h"
	errs = ValidateStep(types.StepLocationServices, form)
	assert.NotContains(t, errs, "turnaround_time")
}

func TestDocumentsStepRequiresEverySlot(t *testing.T) {
	form := NewForm()
	errs := ValidateStep(types.StepDocuments, form)
	assert.Len(t, errs, len(types.DocumentSlots))

	form.Documents[types.SlotLicense] = &types.Attachment{FileName: "l.pdf"}
	errs = ValidateStep(types.StepDocuments, form)
	assert.Len(t, errs, len(types.DocumentSlots)-1)
	assert.NotContains(t, errs, string(types.SlotLicense))
}

func TestAgreementsEachIndividuallyRequired(t *testing.T) {
	form := NewForm()
	form.Agreements = types.Agreements{NDA: true, Terms: true, DigitalConsent: true, TermsAccepted: true}
	assert.Empty(t, ValidateStep(types.StepAgreements, form))

	form.Agreements.DigitalConsent = false
	errs := ValidateStep(types.StepAgreements, form)
	assert.Len(t, errs, 1)
	assert.Contains(t, errs, "digital_consent")
}
