package constants

// Каноническая раскладка книги PORTALIA MC2.
// Ячейки результата на листе шаблона (C10/C12/C14) основные,
// ячейки E23/E26/E8 листа расчёта остались от старых ревизий книги.

// Лист расчёта: входные ячейки
const (
	CellDailyRate      = "J4"
	CellWorkedDays     = "J5"
	CellEmployerRate   = "J8"
	CellNegotiable     = "J9"
	CellAdditionalRate = "J10"
	CellOperatingFee   = "J12"
	CellInsurance      = "J17"
	CellMealVoucher    = "J21"
	CellCommuneCode    = "J25"
)

// Лист шаблона: результаты
const (
	CellResultGross       = "C10"
	CellResultNet         = "C12"
	CellResultFee         = "C14"
	CellResultMealVoucher = "C16"
	CellResultInsurance   = "C18"
)

// Лист расчёта: запасные ячейки результата
const (
	CellCalcGross = "E23"
	CellCalcNet   = "E26"
	CellCalcFee   = "E8"
)

const (
	MealVoucherAmount = 198.0
	InsuranceEnabled  = "Oui"
	InsuranceDisabled = "Non"
	NegotiableMarker  = "A négocier"

	DefaultCommuneSheet = "Communes"
)

// ContractCells: литералы, которые книга ожидает для типа договора.
type ContractCells struct {
	EmployerRate   float64
	Negotiable     interface{}
	AdditionalRate float64
}

var (
	ContractCDI = ContractCells{EmployerRate: 0.02, Negotiable: NegotiableMarker, AdditionalRate: 0}
	ContractCDD = ContractCells{EmployerRate: 0, Negotiable: 0, AdditionalRate: 0.10}
)

var (
	// листы
	CalculationSheets = []string{
		"1. Calcul Avec prov",
		"1. Calcul avec prov",
		"Calcul Avec prov",
		"Calcul avec provisions",
	}
	CalculationTokens = [][]string{{"calcul"}, {"prov"}}

	ResultSheets = []string{
		"Template 3",
		"Template3",
		"Template",
		"Résultats",
	}
	ResultTokens = [][]string{{"template", "result", "résultat"}}

	// макросы
	MacroTokens = []string{"update", "template"}

	CommonMacros = []string{
		"UpdateTemplate",
		"UpdateTemplate3",
		"Calculate",
		"Update",
		"CalculateTemplate",
	}
)
