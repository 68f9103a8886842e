package onboarding

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medimart/platform/pkg/types"
)

func fillStepOne(w *Wizard) {
	_ = w.FieldChange("owner_name", "A. Rao")
	_ = w.FieldChange("lab_name", "City Diagnostics")
	_ = w.FieldChange("license_number", "LIC123")
	_ = w.FieldChange("email", "lab@example.com")
	_ = w.FieldChange("phone", "9876543210")
	w.State().Form.IsKYC = true
}

func fillStepTwo(w *Wizard) {
	_ = w.FieldChange("address", "12 MG Road, Pune")
	_ = w.FieldChange("latitude", "18.5204")
	_ = w.FieldChange("longitude", "73.8567")
	_ = w.FieldChange("gst_number", "27ABCDE1234F1Z5")
	_ = w.FieldChange("pan_number", "ABCDE1234F")
	_ = w.FieldChange("turnaround_time", "24h")
	_ = w.FieldChange("open_time", "08:00")
	_ = w.FieldChange("close_time", "20:00")
	_ = w.ServiceAdd("CBC", "250")
}

func attachAllDocuments(t *testing.T, w *Wizard) {
	t.Helper()
	for _, slot := range types.DocumentSlots {
		ct := "application/pdf"
		if slot == types.SlotSignature || slot == types.SlotPhoto {
			ct = "image/png"
		}
		err := w.FileAttach(slot, &types.Attachment{
			FileName:    string(slot) + ".bin",
			ContentType: ct,
			Size:        128,
			Data:        bytes.Repeat([]byte{1}, 128),
		})
		require.NoError(t, err)
	}
}

func acceptAgreements(w *Wizard) {
	_ = w.FieldChange("nda", "true")
	_ = w.FieldChange("terms", "true")
	_ = w.FieldChange("digital_consent", "true")
	_ = w.FieldChange("terms_accepted", "true")
}

func TestNextAdvancesWhenStepOneValid(t *testing.T) {
	w := NewWizard(NewState())
	fillStepOne(w)

	err := w.Next()

	require.NoError(t, err)
	assert.Equal(t, types.StepLocationServices, w.State().Step)
	assert.Empty(t, w.State().Errors)
}

func TestNextBlockedByInvalidEmail(t *testing.T) {
	w := NewWizard(NewState())
	fillStepOne(w)
	_ = w.FieldChange("email", "not-an-email")

	err := w.Next()

	require.Error(t, err)
	assert.Equal(t, types.StepEntityInfo, w.State().Step)
	assert.Contains(t, w.State().Errors, "email")
}

func TestNextBlockedWithoutKYC(t *testing.T) {
	w := NewWizard(NewState())
	fillStepOne(w)
	w.State().Form.IsKYC = false

	err := w.Next()

	require.Error(t, err)
	assert.Equal(t, types.StepEntityInfo, w.State().Step)
	assert.Contains(t, w.State().Errors, "is_kyc")
}

func TestNextNeverPassesLastStep(t *testing.T) {
	w := NewWizard(NewState())
	fillStepOne(w)
	fillStepTwo(w)
	attachAllDocuments(t, w)
	acceptAgreements(w)
	w.State().Step = types.StepLast

	require.NoError(t, w.Next())
	assert.Equal(t, types.StepLast, w.State().Step)
}

func TestPrevNeverValidates(t *testing.T) {
	w := NewWizard(NewState())
	w.State().Step = types.StepDocuments

	w.Prev()
	assert.Equal(t, types.StepLocationServices, w.State().Step)

	// Floor at the first step.
	w.Prev()
	w.Prev()
	w.Prev()
	assert.Equal(t, types.StepFirst, w.State().Step)
}

func TestFieldChangeClearsOnlyItsOwnError(t *testing.T) {
	w := NewWizard(NewState())
	require.Error(t, w.Next())
	require.Contains(t, w.State().Errors, "email")
	require.Contains(t, w.State().Errors, "phone")

	require.NoError(t, w.FieldChange("email", "lab@example.com"))

	assert.NotContains(t, w.State().Errors, "email")
	assert.Contains(t, w.State().Errors, "phone")
}

func TestFieldChangeRejectsUnknownField(t *testing.T) {
	w := NewWizard(NewState())
	err := w.FieldChange("no_such_field", "x")
	require.Error(t, err)
}

func TestFileAttachRejectsOversizedDocument(t *testing.T) {
	w := NewWizard(NewState())
	sixMB := int64(6 * 1024 * 1024)

	err := w.FileAttach(types.SlotLicense, &types.Attachment{
		FileName:    "license.pdf",
		ContentType: "application/pdf",
		Size:        sixMB,
		Data:        []byte{1},
	})

	require.Error(t, err)
	perr := err.(*types.PlatformError)
	assert.Equal(t, types.ErrCodeFileTooLarge, perr.Code)
	assert.Nil(t, w.State().Form.Documents[types.SlotLicense])
}

func TestFileAttachRejectsDisallowedType(t *testing.T) {
	w := NewWizard(NewState())

	err := w.FileAttach(types.SlotLicense, &types.Attachment{
		FileName:    "notes.txt",
		ContentType: "text/plain",
		Size:        64,
		Data:        bytes.Repeat([]byte{1}, 64),
	})

	require.Error(t, err)
	perr := err.(*types.PlatformError)
	assert.Equal(t, types.ErrCodeFileTypeDenied, perr.Code)
	assert.Nil(t, w.State().Form.Documents[types.SlotLicense])
}

func TestSignatureSlotHasTighterLimits(t *testing.T) {
	w := NewWizard(NewState())

	// A 3MB image is fine for a general slot but over the signature ceiling.
	threeMB := int64(3 * 1024 * 1024)
	att := &types.Attachment{FileName: "sig.png", ContentType: "image/png", Size: threeMB, Data: []byte{1}}

	require.NoError(t, w.FileAttach(types.SlotPhoto, att))

	err := w.FileAttach(types.SlotSignature, att)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeFileTooLarge, err.(*types.PlatformError).Code)

	// PDFs never qualify as signatures.
	err = w.FileAttach(types.SlotSignature, &types.Attachment{
		FileName: "sig.pdf", ContentType: "application/pdf", Size: 64, Data: bytes.Repeat([]byte{1}, 64),
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeFileTypeDenied, err.(*types.PlatformError).Code)
}

func TestFileAttachNormalizesContentType(t *testing.T) {
	w := NewWizard(NewState())
	err := w.FileAttach(types.SlotPhoto, &types.Attachment{
		FileName:    "photo.jpg",
		ContentType: "image/JPEG; charset=binary",
		Size:        64,
		Data:        bytes.Repeat([]byte{1}, 64),
	})
	require.NoError(t, err)
}

func TestFileRemoveClearsSlot(t *testing.T) {
	w := NewWizard(NewState())
	attachAllDocuments(t, w)

	require.NoError(t, w.FileRemove(types.SlotPhoto))
	assert.Nil(t, w.State().Form.Documents[types.SlotPhoto])
	assert.NotNil(t, w.State().Form.Documents[types.SlotLicense])
}

func TestServiceAddPreservesOrder(t *testing.T) {
	w := NewWizard(NewState())

	require.NoError(t, w.ServiceAdd("CBC", "250"))
	require.NoError(t, w.ServiceAdd("Lipid Profile", "700"))
	require.NoError(t, w.ServiceAdd("Thyroid Panel", "450.50"))

	services := w.State().Form.Services
	require.Len(t, services, 3)
	assert.Equal(t, "CBC", services[0].Name)
	assert.Equal(t, "Lipid Profile", services[1].Name)
	assert.Equal(t, "Thyroid Panel", services[2].Name)
	assert.Equal(t, 450.50, services[2].Price)
}

func TestServiceAddRejectsBadInput(t *testing.T) {
	w := NewWizard(NewState())

	require.Error(t, w.ServiceAdd("", "100"))
	require.Error(t, w.ServiceAdd("   ", "100"))
	require.Error(t, w.ServiceAdd("CBC", "abc"))
	require.Error(t, w.ServiceAdd("CBC", "-5"))
	assert.Empty(t, w.State().Form.Services)
}

func TestServiceRemoveKeepsRemainingOrder(t *testing.T) {
	w := NewWizard(NewState())
	require.NoError(t, w.ServiceAdd("A", "1"))
	require.NoError(t, w.ServiceAdd("B", "2"))
	require.NoError(t, w.ServiceAdd("C", "3"))

	require.NoError(t, w.ServiceRemove(1))

	services := w.State().Form.Services
	require.Len(t, services, 2)
	assert.Equal(t, "A", services[0].Name)
	assert.Equal(t, "C", services[1].Name)

	require.Error(t, w.ServiceRemove(5))
	require.Error(t, w.ServiceRemove(-1))
}

func TestMergeKYCFillsOnlyEmptyFields(t *testing.T) {
	w := NewWizard(NewState())
	_ = w.FieldChange("owner_name", "Typed Name")

	w.MergeKYC(&types.KYCData{Name: "Verified Name", Address: "Verified Address"})

	assert.True(t, w.State().Form.IsKYC)
	assert.Equal(t, "Typed Name", w.State().Form.OwnerName)
	assert.Equal(t, "Verified Address", w.State().Form.Address)
}

func TestResetRestoresDefaults(t *testing.T) {
	w := NewWizard(NewState())
	fillStepOne(w)
	require.NoError(t, w.Next())

	w.Reset()

	assert.Equal(t, types.StepFirst, w.State().Step)
	assert.Empty(t, w.State().Form.OwnerName)
	assert.Empty(t, w.State().Errors)
	assert.False(t, w.State().Submitting)
}

func TestFullWalkthrough(t *testing.T) {
	w := NewWizard(NewState())

	fillStepOne(w)
	require.NoError(t, w.Next())

	fillStepTwo(w)
	require.NoError(t, w.Next())

	attachAllDocuments(t, w)
	require.NoError(t, w.Next())

	// Every agreement is individually required.
	acceptAgreements(w)
	_ = w.FieldChange("digital_consent", "false")
	errs := w.ValidateFinal()
	require.Contains(t, errs, "digital_consent")
	assert.Len(t, errs, 1)

	_ = w.FieldChange("digital_consent", "true")
	assert.Empty(t, w.ValidateFinal())
}
