package settings

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/blobstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/changefeed"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

// Service keeps an in-memory copy of the settings singletons. Reads never
// touch the store; every setter persists first and then refreshes the copy.
// Watch keeps the copy current when another instance writes.
type Service struct {
	store        docstore.Store
	blobs        blobstore.Store
	validate     *apierr.Validator
	activity     activity.Recorder
	logger       zerolog.Logger
	maxLogoBytes int64
	now          func() time.Time

	writeMu sync.Mutex // serializes read-merge-write of the singletons

	mu   sync.RWMutex
	app  AppSettings
	fees GeneralFees
}

func NewService(store docstore.Store, blobs blobstore.Store, rec activity.Recorder, logger zerolog.Logger, maxLogoBytes int64) *Service {
	return &Service{
		store:        store,
		blobs:        blobs,
		validate:     apierr.NewValidator(),
		activity:     rec,
		logger:       logger.With().Str("component", "settings").Logger(),
		maxLogoBytes: maxLogoBytes,
		now:          time.Now,
		app:          DefaultApp(),
	}
}

// Load reads both singletons. Call it once at startup.
func (s *Service) Load(ctx context.Context) error {
	appDoc, err := load(ctx, s.store, AppID)
	if err != nil {
		return err
	}
	feesDoc, err := load(ctx, s.store, GeneralFeesID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.app = appFromDoc(appDoc)
	s.fees = feesFromDoc(feesDoc)
	s.mu.Unlock()
	return nil
}

func (s *Service) App() AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.app
	out.WorkingDays = append([]string(nil), s.app.WorkingDays...)
	return out
}

func (s *Service) Fees() GeneralFees {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fees
}

// UpdateApp merges patch into the stored app settings.
func (s *Service) UpdateApp(ctx context.Context, patch *AppPatch) (AppSettings, error) {
	if err := s.validate.Validate(patch); err != nil {
		return AppSettings{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc, err := load(ctx, s.store, AppID)
	if err != nil {
		return AppSettings{}, err
	}
	next := appFromDoc(doc)
	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&next.ClinicName, patch.ClinicName)
	apply(&next.ThemePrimaryColor, patch.ThemePrimaryColor)
	apply(&next.ThemeAccentColor, patch.ThemeAccentColor)
	apply(&next.OpeningTime, patch.OpeningTime)
	apply(&next.ClosingTime, patch.ClosingTime)
	if patch.Currency != nil {
		next.Currency = strings.ToUpper(*patch.Currency)
	}
	if patch.WorkingDays != nil {
		next.WorkingDays = *patch.WorkingDays
	}
	if next.OpeningTime >= next.ClosingTime {
		return AppSettings{}, apierr.Field("closingTime", "must be after openingTime")
	}

	saved, err := s.saveApp(ctx, next)
	if err != nil {
		return AppSettings{}, err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     "Updated clinic settings",
		EntityType: "settings",
		EntityID:   AppID,
		Icon:       "settings",
		Link:       "/admin/settings",
	})
	return saved, nil
}

// UpdateFees merges patch into the general fees document.
func (s *Service) UpdateFees(ctx context.Context, patch *FeesPatch) (GeneralFees, error) {
	if err := s.validate.Validate(patch); err != nil {
		return GeneralFees{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc, err := load(ctx, s.store, GeneralFeesID)
	if err != nil {
		return GeneralFees{}, err
	}
	next := feesFromDoc(doc)
	if patch.ConsultationFee != nil {
		next.ConsultationFee = *patch.ConsultationFee
	}
	if patch.CheckupFee != nil {
		next.CheckupFee = *patch.CheckupFee
	}
	next.UpdatedAt = s.now().UTC()
	if err := s.store.Put(ctx, Collection, GeneralFeesID, feesToDoc(next)); err != nil {
		return GeneralFees{}, fmt.Errorf("save general fees: %w", err)
	}
	s.mu.Lock()
	s.fees = next
	s.mu.Unlock()

	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Set general fees: consultation %.2f, checkup %.2f", next.ConsultationFee, next.CheckupFee),
		EntityType: "settings",
		EntityID:   GeneralFeesID,
		Icon:       "tag",
		Link:       "/admin/pricing",
	})
	return next, nil
}

// UploadLogo stores the clinic logo. Raster types must match what the
// bytes actually are.
func (s *Service) UploadLogo(ctx context.Context, r io.Reader, contentType string) (AppSettings, error) {
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !allowedLogoTypes[contentType] {
		return AppSettings{}, apierr.Field("logo", ErrUnsupportedLogoType.Error())
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxLogoBytes+1))
	if err != nil {
		return AppSettings{}, fmt.Errorf("read logo: %w", err)
	}
	if int64(len(data)) > s.maxLogoBytes {
		return AppSettings{}, apierr.New(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("%s: limit is %d bytes", ErrLogoTooLarge, s.maxLogoBytes))
	}
	if len(data) == 0 {
		return AppSettings{}, apierr.Field("logo", "is empty")
	}
	if contentType != "image/svg+xml" && http.DetectContentType(data) != contentType {
		return AppSettings{}, apierr.Field("logo", "content does not match "+contentType)
	}

	if _, err := s.blobs.Put(ctx, LogoKey, bytes.NewReader(data), contentType); err != nil {
		return AppSettings{}, fmt.Errorf("store logo: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	doc, err := load(ctx, s.store, AppID)
	if err != nil {
		return AppSettings{}, err
	}
	next := appFromDoc(doc)
	next.LogoKey = LogoKey
	saved, err := s.saveApp(ctx, next)
	if err != nil {
		return AppSettings{}, err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     "Uploaded a new clinic logo",
		EntityType: "settings",
		EntityID:   AppID,
		Icon:       "image",
		Link:       "/admin/settings",
	})
	return saved, nil
}

// OpenLogo streams the stored logo. The caller closes the reader.
func (s *Service) OpenLogo(ctx context.Context) (blobstore.Info, io.ReadCloser, error) {
	key := s.App().LogoKey
	if key == "" {
		return blobstore.Info{}, nil, ErrNoLogo
	}
	return s.blobs.Get(ctx, key)
}

// Watch refreshes the in-memory copy from settings changes until sub is
// closed or ctx ends.
func (s *Service) Watch(ctx context.Context, sub *changefeed.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.C:
			if !ok {
				return
			}
			if c.Collection != Collection {
				continue
			}
			doc := c.Doc
			if doc == nil {
				doc = docstore.Document{}
			}
			s.mu.Lock()
			switch c.ID {
			case AppID:
				s.app = appFromDoc(doc)
			case GeneralFeesID:
				s.fees = feesFromDoc(doc)
			}
			s.mu.Unlock()
			s.logger.Debug().Str("id", c.ID).Msg("settings refreshed")
		}
	}
}

func (s *Service) saveApp(ctx context.Context, next AppSettings) (AppSettings, error) {
	next.UpdatedAt = s.now().UTC()
	doc := appToDoc(next)
	if err := s.store.Put(ctx, Collection, AppID, doc); err != nil {
		return AppSettings{}, fmt.Errorf("save app settings: %w", err)
	}
	saved := appFromDoc(doc)
	s.mu.Lock()
	s.app = saved
	s.mu.Unlock()
	return saved, nil
}
