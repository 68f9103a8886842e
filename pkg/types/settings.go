package types

import "time"

// SettingsSection names one persisted configuration section of the admin console.
type SettingsSection string

const (
	SectionSMTP         SettingsSection = "smtp"
	SectionAI           SettingsSection = "ai"
	SectionNotification SettingsSection = "notification"
	SectionBusiness     SettingsSection = "business"
	SectionSecurity     SettingsSection = "security"
	SectionLab          SettingsSection = "lab"
)

// SettingsSections lists every section the console exposes.
var SettingsSections = []SettingsSection{
	SectionSMTP, SectionAI, SectionNotification,
	SectionBusiness, SectionSecurity, SectionLab,
}

// SMTPSettings configures outbound mail.
type SMTPSettings struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name"`
	UseTLS      bool   `json:"use_tls"`
}

// AISettings configures the assistant features of the admin console.
type AISettings struct {
	Enabled     bool    `json:"enabled"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"api_key"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// NotificationSettings configures the notification center defaults.
type NotificationSettings struct {
	PushEnabled  bool `json:"push_enabled"`
	EmailEnabled bool `json:"email_enabled"`
	DedupWindowMinutes int `json:"dedup_window_minutes"`
}

// BusinessSettings holds marketplace-wide business configuration.
type BusinessSettings struct {
	PlatformName     string  `json:"platform_name"`
	SupportEmail     string  `json:"support_email"`
	SupportPhone     string  `json:"support_phone"`
	CommissionRate   float64 `json:"commission_rate"`
	CurrencyCode     string  `json:"currency_code"`
	DefaultTheme     string  `json:"default_theme"`
	MaintenanceMode  bool    `json:"maintenance_mode"`
}

// SecuritySettings holds platform security knobs.
type SecuritySettings struct {
	SessionTTLMinutes    int  `json:"session_ttl_minutes"`
	MaxLoginAttempts     int  `json:"max_login_attempts"`
	PasswordMinLength    int  `json:"password_min_length"`
	RequireStrongPassword bool `json:"require_strong_password"`
	TwoFactorEnabled     bool `json:"two_factor_enabled"`
}

// LabSettings holds lab-onboarding configuration.
type LabSettings struct {
	AutoApprove          bool     `json:"auto_approve"`
	RequiredDocuments    []string `json:"required_documents"`
	MaxDocumentSizeMB    int      `json:"max_document_size_mb"`
	MaxSignatureSizeKB   int      `json:"max_signature_size_kb"`
	AllowedTurnarounds   []string `json:"allowed_turnarounds"`
}

// SettingsRecord is a persisted section: a key plus its JSON document.
type SettingsRecord struct {
	Section   SettingsSection `json:"section" db:"section"`
	Document  []byte          `json:"document" db:"document"`
	UpdatedBy string          `json:"updated_by" db:"updated_by"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// SMTPTestResult is the structured outcome of a live SMTP connection test.
type SMTPTestResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
