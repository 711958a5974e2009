package storage

import "time"

type ContractType string

const (
	ContractNone ContractType = ""
	ContractCDI  ContractType = "CDI"
	ContractCDD  ContractType = "CDD"
)

// ConversionRequest: нормализованный запрос на расчёт через книгу.
type ConversionRequest struct {
	DailyRate          float64      `json:"tjm"`
	WorkedDays         int          `json:"jours_travailles"`
	ContractType       ContractType `json:"contract_type,omitempty"`
	OperatingFeeRate   *float64     `json:"frais_fonctionnement,omitempty"`
	MealVoucherEnabled bool         `json:"ticket_restaurant"`
	InsuranceEnabled   bool         `json:"mutuelle"`
	CommuneCode        *string      `json:"code_commune,omitempty"`
	NegotiatedOverride *string      `json:"negotiated_value,omitempty"`
}

// ConversionResult: nil в основных полях означает «ячейка пустая», а не ноль.
type ConversionResult struct {
	DailyRate     float64        `json:"tjm"`
	GrossMonthly  *float64       `json:"brut_mensuel"`
	NetMonthly    *float64       `json:"net_mensuel"`
	ManagementFee *float64       `json:"frais_gestion"`
	Details       BenefitDetails `json:"autres_details"`
	Warnings      []string       `json:"warnings,omitempty"`
	Source        string         `json:"source"`
}

type BenefitDetails struct {
	MealVoucherContribution float64 `json:"ticket_restaurant_contribution"`
	InsuranceContribution   float64 `json:"mutuelle_contribution"`
}

const (
	SourceExcel    = "excel"
	SourceFallback = "fallback"
)

// Conversion: запись журнала расчётов.
type Conversion struct {
	ID        int64             `json:"id"`
	Request   ConversionRequest `json:"request"`
	Result    ConversionResult  `json:"result"`
	CreatedAt time.Time         `json:"created_at"`
}

type TemplateInfo struct {
	TemplatePath   string    `json:"template_path"`
	AbsolutePath   string    `json:"absolute_path"`
	Exists         bool      `json:"exists"`
	Size           int64     `json:"size"`
	ModifiedAt     time.Time `json:"modified_at,omitempty"`
	WorkingDir     string    `json:"working_directory"`
	CandidateFiles []string  `json:"candidate_files"`
}

func Float(v float64) *float64 {
	return &v
}
