package types

import "time"

// WizardStep identifies a page of the lab onboarding wizard.
type WizardStep int

const (
	StepEntityInfo WizardStep = iota + 1
	StepLocationServices
	StepDocuments
	StepAgreements

	// StepFirst and StepLast bound the step pointer.
	StepFirst = StepEntityInfo
	StepLast  = StepAgreements
)

// DocumentSlot names a fixed position in the form reserved for one upload.
type DocumentSlot string

const (
	SlotLicense   DocumentSlot = "license_file"
	SlotIdentity  DocumentSlot = "identity_file"
	SlotPhoto     DocumentSlot = "photo"
	SlotSignature DocumentSlot = "signature"
)

// DocumentSlots lists every slot in display order.
var DocumentSlots = []DocumentSlot{SlotLicense, SlotIdentity, SlotPhoto, SlotSignature}

// Attachment is a file held in a document slot. Data is the raw file bytes;
// ContentType is the declared MIME type checked against the allow-list at
// attach time, never at submission.
type Attachment struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Data        []byte `json:"data"`
}

// ServiceItem is one offered lab service. Insertion order is display order
// and must survive save/restore round trips.
type ServiceItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Agreements holds the independent consent flags, each individually required
// before final submission.
type Agreements struct {
	NDA            bool `json:"nda"`
	Terms          bool `json:"terms"`
	DigitalConsent bool `json:"digital_consent"`
	TermsAccepted  bool `json:"terms_accepted"`
}

// KYCData is the identity payload merged in from the verification provider.
type KYCData struct {
	Name        string `json:"name,omitempty"`
	DateOfBirth string `json:"dob,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Address     string `json:"address,omitempty"`
	DocumentID  string `json:"document_id,omitempty"`
}

// OnboardingForm is the single mutable record driving the wizard.
type OnboardingForm struct {
	// Identity / contact
	OwnerName     string `json:"owner_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Mobile        string `json:"mobile"`
	WhatsApp      string `json:"whatsapp"`
	ContactPerson string `json:"contact_person"`

	// Entity
	LabName            string `json:"lab_name"`
	LicenseNumber      string `json:"license_number"`
	RegistrationNumber string `json:"registration_number"`
	Address            string `json:"address"`
	Latitude           string `json:"latitude"`
	Longitude          string `json:"longitude"`

	// Business
	GSTNumber         string `json:"gst_number"`
	PANNumber         string `json:"pan_number"`
	IFSCCode          string `json:"ifsc_code"`
	BankAccountNumber string `json:"bank_account_number"`
	YearsExperience   int    `json:"years_experience"`
	TurnaroundTime    string `json:"turnaround_time"`
	HomeCollection    bool   `json:"home_collection"`
	OpenTime          string `json:"open_time"`
	CloseTime         string `json:"close_time"`

	Services  []ServiceItem                `json:"services"`
	Documents map[DocumentSlot]*Attachment `json:"documents"`

	KYC        *KYCData   `json:"kyc,omitempty"`
	IsKYC      bool       `json:"is_kyc"`
	Agreements Agreements `json:"agreements"`
}

// TurnaroundTimes enumerates the accepted turnaround-time values.
var TurnaroundTimes = []string{"same_day", "24h", "48h", "72h", "1_week"}

// LabApplication is a submitted onboarding form as persisted by the registry.
type LabApplication struct {
	ID                 string        `json:"id" db:"id"`
	OwnerName          string        `json:"owner_name" db:"owner_name"`
	Email              string        `json:"email" db:"email"`
	Phone              string        `json:"phone" db:"phone"`
	LabName            string        `json:"lab_name" db:"lab_name"`
	LicenseNumber      string        `json:"license_number" db:"license_number"`
	RegistrationNumber string        `json:"registration_number" db:"registration_number"`
	Address            string        `json:"address" db:"address"`
	GSTNumber          string        `json:"gst_number" db:"gst_number"`
	PANNumber          string        `json:"pan_number" db:"pan_number"`
	Services           []ServiceItem `json:"services" db:"-"`
	IsKYC              bool          `json:"is_kyc" db:"is_kyc"`
	Status             string        `json:"status" db:"status"`
	DocumentURLs       map[string]string `json:"document_urls" db:"-"`
	AcknowledgmentURL  string        `json:"acknowledgment_url" db:"acknowledgment_url"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// Application status values
const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusApproved = "approved"
	ApplicationStatusRejected = "rejected"
)

// SubmissionResult is the submission endpoint's JSON response.
type SubmissionResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	ApplicationID string `json:"application_id,omitempty"`
}
