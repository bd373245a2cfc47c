package settings

import (
	"errors"
	"time"
)

const Collection = "settings"

// Singleton document ids.
const (
	AppID         = "app"
	GeneralFeesID = "general_fees"
)

// LogoKey is where the clinic logo lives in blob storage.
const LogoKey = "branding/logo"

var (
	ErrNoLogo              = errors.New("no logo uploaded")
	ErrUnsupportedLogoType = errors.New("logo must be a PNG, JPEG, SVG or WebP image")
	ErrLogoTooLarge        = errors.New("logo is too large")
)

var allowedLogoTypes = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/svg+xml": true,
	"image/webp":    true,
}

type AppSettings struct {
	ClinicName        string    `json:"clinicName"`
	Currency          string    `json:"currency"`
	ThemePrimaryColor string    `json:"themePrimaryColor"`
	ThemeAccentColor  string    `json:"themeAccentColor"`
	OpeningTime       string    `json:"openingTime"`
	ClosingTime       string    `json:"closingTime"`
	WorkingDays       []string  `json:"workingDays"`
	LogoKey           string    `json:"logoKey,omitempty"`
	LogoURL           string    `json:"logoUrl,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// DefaultApp fills every key a fresh installation has not set yet.
func DefaultApp() AppSettings {
	return AppSettings{
		ClinicName:        "ClinicDesk",
		Currency:          "USD",
		ThemePrimaryColor: "#0f766e",
		ThemeAccentColor:  "#f59e0b",
		OpeningTime:       "08:00",
		ClosingTime:       "18:00",
		WorkingDays:       []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
	}
}

type GeneralFees struct {
	ConsultationFee float64   `json:"consultationFee"`
	CheckupFee      float64   `json:"checkupFee"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type AppPatch struct {
	ClinicName        *string   `json:"clinicName" validate:"omitempty,min=1,max=100"`
	Currency          *string   `json:"currency" validate:"omitempty,iso4217"`
	ThemePrimaryColor *string   `json:"themePrimaryColor" validate:"omitempty,hexcolor"`
	ThemeAccentColor  *string   `json:"themeAccentColor" validate:"omitempty,hexcolor"`
	OpeningTime       *string   `json:"openingTime" validate:"omitempty,clock"`
	ClosingTime       *string   `json:"closingTime" validate:"omitempty,clock"`
	WorkingDays       *[]string `json:"workingDays" validate:"omitempty,unique,dive,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
}

type FeesPatch struct {
	ConsultationFee *float64 `json:"consultationFee" validate:"omitempty,gte=0"`
	CheckupFee      *float64 `json:"checkupFee" validate:"omitempty,gte=0"`
}
