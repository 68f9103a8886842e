package onboarding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"

	"github.com/medimart/platform/pkg/types"
)

// BuildSubmission serializes a validated form into a multipart body for the
// registry endpoint. Scalars travel as plain string parts, booleans as "true"
// or "false", structured values as JSON parts, and documents as binary file
// parts named after their slot. Returns the encoded body and its content type.
func BuildSubmission(form *types.OnboardingForm) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := map[string]string{
		"owner_name":          form.OwnerName,
		"email":               form.Email,
		"phone":               form.Phone,
		"mobile":              form.Mobile,
		"whatsapp":            form.WhatsApp,
		"contact_person":      form.ContactPerson,
		"lab_name":            form.LabName,
		"license_number":      form.LicenseNumber,
		"registration_number": form.RegistrationNumber,
		"address":             form.Address,
		"latitude":            form.Latitude,
		"longitude":           form.Longitude,
		"gst_number":          form.GSTNumber,
		"pan_number":          form.PANNumber,
		"ifsc_code":           form.IFSCCode,
		"bank_account_number": form.BankAccountNumber,
		"turnaround_time":     form.TurnaroundTime,
		"open_time":           form.OpenTime,
		"close_time":          form.CloseTime,
		"years_experience":    strconv.Itoa(form.YearsExperience),
		"home_collection":     strconv.FormatBool(form.HomeCollection),
		"is_kyc":              strconv.FormatBool(form.IsKYC),
		"nda":                 strconv.FormatBool(form.Agreements.NDA),
		"terms":               strconv.FormatBool(form.Agreements.Terms),
		"digital_consent":     strconv.FormatBool(form.Agreements.DigitalConsent),
		"terms_accepted":      strconv.FormatBool(form.Agreements.TermsAccepted),
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	if err := writeJSONPart(w, "services", form.Services); err != nil {
		return nil, "", err
	}
	if form.KYC != nil {
		if err := writeJSONPart(w, "kyc", form.KYC); err != nil {
			return nil, "", err
		}
	}

	for _, slot := range types.DocumentSlots {
		att := form.Documents[slot]
		if att == nil {
			continue
		}
		part, err := w.CreateFormFile(string(slot), att.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part %s: %w", slot, err)
		}
		if _, err := part.Write(att.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write file part %s: %w", slot, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeJSONPart(w *multipart.Writer, name string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := w.WriteField(name, string(raw)); err != nil {
		return fmt.Errorf("failed to write field %s: %w", name, err)
	}
	return nil
}
