package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

var validate = validator.New()

func validateStruct(params any) map[string]string {
	if err := validate.Struct(params); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

type AskParams struct {
	Question string `json:"question" validate:"required,max=4000"`
}

func (params *AskParams) Validate() map[string]string {
	params.Question = strings.TrimSpace(params.Question)
	return validateStruct(params)
}

type DiagnoseParams struct {
	Symptoms []string `json:"symptoms" validate:"required,min=1,max=50,dive,required"`
}

func (params *DiagnoseParams) Validate() map[string]string {
	for i, s := range params.Symptoms {
		params.Symptoms[i] = strings.TrimSpace(s)
	}
	return validateStruct(params)
}

type UploadParams struct {
	Description string `json:"description" form:"description" validate:"max=1000"`
}

func (params *UploadParams) Validate() map[string]string {
	return validateStruct(params)
}

type RegisterAnimalParams struct {
	TagID          string     `json:"tag_id" validate:"required,max=64"`
	Species        string     `json:"species" validate:"required,max=64"`
	Breed          string     `json:"breed" validate:"max=128"`
	GeneticLineage string     `json:"genetic_lineage" validate:"max=256"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
}

func (params *RegisterAnimalParams) Validate() map[string]string {
	params.TagID = strings.TrimSpace(params.TagID)
	params.Species = strings.TrimSpace(params.Species)
	return validateStruct(params)
}

type MedicalLogParams struct {
	MedicineName   string     `json:"medicine_name" validate:"required,max=256"`
	Dosage         string     `json:"dosage" validate:"max=256"`
	AdministeredAt *time.Time `json:"administered_at"`
	WithdrawalDays int        `json:"withdrawal_days" validate:"gte=0,lte=365"`
	Notes          string     `json:"notes" validate:"max=2000"`
}

func (params *MedicalLogParams) Validate() map[string]string {
	params.MedicineName = strings.TrimSpace(params.MedicineName)
	return validateStruct(params)
}

type QuarantineParams struct {
	Quarantine bool   `json:"quarantine"`
	Reason     string `json:"reason" validate:"max=512"`
}

func (params *QuarantineParams) Validate() map[string]string {
	return validateStruct(params)
}

type ProductParams struct {
	ProductType      string  `json:"product_type" validate:"required,max=64"`
	AnimalID         string  `json:"animal_id" validate:"required,uuid"`
	TotalQuantity    float64 `json:"total_quantity" validate:"gt=0"`
	Unit             string  `json:"unit" validate:"max=32"`
	PricePerUnit     float64 `json:"price_per_unit" validate:"gt=0"`
	MinOrderQuantity float64 `json:"min_order_quantity" validate:"gte=0"`
	Description      string  `json:"description" validate:"max=2000"`
}

func (params *ProductParams) Validate() map[string]string {
	params.ProductType = strings.TrimSpace(params.ProductType)
	return validateStruct(params)
}

type AnswerResponse struct {
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	Timestamp time.Time `json:"timestamp"`
}

type Source struct {
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

type Confidence string

const (
	ConfidenceHigh    Confidence = "High"
	ConfidenceMedium  Confidence = "Medium"
	ConfidenceLow     Confidence = "Low"
	ConfidenceUnknown Confidence = "Unknown"
)

// ParseConfidence coerces a free-text model label to the closed set.
func ParseConfidence(label string) Confidence {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.HasPrefix(l, "high"):
		return ConfidenceHigh
	case strings.HasPrefix(l, "medium"), strings.HasPrefix(l, "moderate"):
		return ConfidenceMedium
	case strings.HasPrefix(l, "low"):
		return ConfidenceLow
	}
	return ConfidenceUnknown
}

type Diagnosis struct {
	Disease     string     `json:"disease"`
	Confidence  Confidence `json:"confidence"`
	Explanation string     `json:"explanation"`
	Treatment   string     `json:"treatment"`
	RawResponse string     `json:"raw_response"`
}
