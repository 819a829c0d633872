// Package customer holds the CustomerRecord model and its request schema.
package customer

import "strconv"

// Record is one row of customer features as accepted by POST /predict.
type Record struct {
	Gender           string  `json:"gender"`
	SeniorCitizen    int     `json:"SeniorCitizen"`
	Partner          string  `json:"Partner"`
	Dependents       string  `json:"Dependents"`
	Tenure           float64 `json:"tenure"`
	PhoneService     string  `json:"PhoneService"`
	MultipleLines    string  `json:"MultipleLines"`
	InternetService  string  `json:"InternetService"`
	OnlineSecurity   string  `json:"OnlineSecurity"`
	OnlineBackup     string  `json:"OnlineBackup"`
	DeviceProtection string  `json:"DeviceProtection"`
	TechSupport      string  `json:"TechSupport"`
	StreamingTV      string  `json:"StreamingTV"`
	StreamingMovies  string  `json:"StreamingMovies"`
	Contract         string  `json:"Contract"`
	PaperlessBilling string  `json:"PaperlessBilling"`
	PaymentMethod    string  `json:"PaymentMethod"`
	MonthlyCharges   float64 `json:"MonthlyCharges"`
	TotalCharges     float64 `json:"TotalCharges"`
}

// Categorical returns the categorical attributes keyed by column name.
// SeniorCitizen is encoded as a category, rendered in decimal.
func (r Record) Categorical() map[string]string {
	return map[string]string{
		"gender":           r.Gender,
		"SeniorCitizen":    strconv.Itoa(r.SeniorCitizen),
		"Partner":          r.Partner,
		"Dependents":       r.Dependents,
		"PhoneService":     r.PhoneService,
		"MultipleLines":    r.MultipleLines,
		"InternetService":  r.InternetService,
		"OnlineSecurity":   r.OnlineSecurity,
		"OnlineBackup":     r.OnlineBackup,
		"DeviceProtection": r.DeviceProtection,
		"TechSupport":      r.TechSupport,
		"StreamingTV":      r.StreamingTV,
		"StreamingMovies":  r.StreamingMovies,
		"Contract":         r.Contract,
		"PaperlessBilling": r.PaperlessBilling,
		"PaymentMethod":    r.PaymentMethod,
	}
}

// Numeric returns the numeric attributes keyed by column name.
func (r Record) Numeric() map[string]float64 {
	return map[string]float64{
		"tenure":         r.Tenure,
		"MonthlyCharges": r.MonthlyCharges,
		"TotalCharges":   r.TotalCharges,
	}
}

// Sample is the reference record used by the one-shot predict command and
// the load tester.
func Sample() Record {
	return Record{
		Gender:           "Male",
		SeniorCitizen:    0,
		Partner:          "No",
		Dependents:       "No",
		Tenure:           12,
		PhoneService:     "Yes",
		MultipleLines:    "No",
		InternetService:  "Fiber optic",
		OnlineSecurity:   "No",
		OnlineBackup:     "No",
		DeviceProtection: "No",
		TechSupport:      "No",
		StreamingTV:      "Yes",
		StreamingMovies:  "Yes",
		Contract:         "Month-to-month",
		PaperlessBilling: "Yes",
		PaymentMethod:    "Electronic check",
		MonthlyCharges:   70.35,
		TotalCharges:     845.5,
	}
}
