package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

const (
	keyClinicName        = "clinic_name"
	keyCurrency          = "currency"
	keyThemePrimaryColor = "theme_primary_color"
	keyThemeAccentColor  = "theme_accent_color"
	keyOpeningTime       = "opening_time"
	keyClosingTime       = "closing_time"
	keyWorkingDays       = "working_days"
	keyLogoKey           = "logo_key"
	keyConsultationFee   = "consultation_fee"
	keyCheckupFee        = "checkup_fee"
	keyUpdatedAt         = "updated_at"
)

// load returns the stored singleton, or an empty document when it was
// never written.
func load(ctx context.Context, store docstore.Store, id string) (docstore.Document, error) {
	d, err := store.Get(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return docstore.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings %s: %w", id, err)
	}
	return d, nil
}

// appFromDoc overlays the stored keys on the defaults.
func appFromDoc(d docstore.Document) AppSettings {
	s := DefaultApp()
	overlay := func(key string, dst *string) {
		if v := d.String(key); v != "" {
			*dst = v
		}
	}
	overlay(keyClinicName, &s.ClinicName)
	overlay(keyCurrency, &s.Currency)
	overlay(keyThemePrimaryColor, &s.ThemePrimaryColor)
	overlay(keyThemeAccentColor, &s.ThemeAccentColor)
	overlay(keyOpeningTime, &s.OpeningTime)
	overlay(keyClosingTime, &s.ClosingTime)
	overlay(keyLogoKey, &s.LogoKey)
	if _, ok := d[keyWorkingDays]; ok {
		s.WorkingDays = d.Strings(keyWorkingDays)
	}
	if s.LogoKey != "" {
		s.LogoURL = "/api/settings/logo"
	}
	s.UpdatedAt = d.Time(keyUpdatedAt)
	return s
}

func appToDoc(s AppSettings) docstore.Document {
	days := make([]any, len(s.WorkingDays))
	for i, d := range s.WorkingDays {
		days[i] = d
	}
	return docstore.Document{
		keyClinicName:        s.ClinicName,
		keyCurrency:          s.Currency,
		keyThemePrimaryColor: s.ThemePrimaryColor,
		keyThemeAccentColor:  s.ThemeAccentColor,
		keyOpeningTime:       s.OpeningTime,
		keyClosingTime:       s.ClosingTime,
		keyWorkingDays:       days,
		keyLogoKey:           s.LogoKey,
		keyUpdatedAt:         docstore.FormatTime(s.UpdatedAt),
	}
}

func feesFromDoc(d docstore.Document) GeneralFees {
	return GeneralFees{
		ConsultationFee: d.Float(keyConsultationFee),
		CheckupFee:      d.Float(keyCheckupFee),
		UpdatedAt:       d.Time(keyUpdatedAt),
	}
}

func feesToDoc(f GeneralFees) docstore.Document {
	return docstore.Document{
		keyConsultationFee: f.ConsultationFee,
		keyCheckupFee:      f.CheckupFee,
		keyUpdatedAt:       docstore.FormatTime(f.UpdatedAt),
	}
}
