package lifecycle

import (
	"errors"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"linky/internal/model"
	"linky/internal/notify"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxReasonLength caps free-text cancel/decline reasons.
const MaxReasonLength = 500

// DefaultNotFoundReason is stored when an admin cannot source a product.
const DefaultNotFoundReason = "offer not found"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// OfferDraft is a validated offer form.
type OfferDraft struct {
	ProductTitle   string
	OriginalPrice  decimal.Decimal
	LinkyPrice     decimal.Decimal
	EtaDays        int
	AdminSourceURL string
	Note           *string
	ImageURL       *string
}

// Offer builds the offer row for requestID, stamped at now.
func (d OfferDraft) Offer(requestID uuid.UUID, now time.Time) *model.Offer {
	src := d.AdminSourceURL
	return &model.Offer{
		ID:             uuid.New(),
		RequestID:      requestID,
		ProductTitle:   d.ProductTitle,
		ImageURL:       d.ImageURL,
		LinkyPrice:     d.LinkyPrice,
		EtaDays:        d.EtaDays,
		Note:           d.Note,
		AdminSourceURL: &src,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ValidateOffer checks every field of form and either returns a complete
// draft or a *ValidationError naming all failing fields.
func ValidateOffer(form model.OfferForm) (OfferDraft, error) {
	form = model.OfferForm{
		ProductTitle:   strings.TrimSpace(form.ProductTitle),
		OriginalPrice:  strings.TrimSpace(form.OriginalPrice),
		LinkyPrice:     strings.TrimSpace(form.LinkyPrice),
		EtaDays:        strings.TrimSpace(form.EtaDays),
		AdminSourceURL: strings.TrimSpace(form.AdminSourceURL),
		Note:           strings.TrimSpace(form.Note),
		ImageURL:       strings.TrimSpace(form.ImageURL),
	}

	fe := fieldErrors{}
	if err := validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return OfferDraft{}, err
		}
		for _, v := range verrs {
			fe.add(v.Field(), v.Tag())
		}
	}

	draft := OfferDraft{ProductTitle: form.ProductTitle}

	if !fe.has("originalPrice") {
		draft.OriginalPrice = fe.price("originalPrice", form.OriginalPrice)
	}
	if !fe.has("linkyPrice") {
		draft.LinkyPrice = fe.price("linkyPrice", form.LinkyPrice)
	}
	if !fe.has("etaDays") {
		n, err := strconv.Atoi(form.EtaDays)
		switch {
		case err != nil:
			fe.add("etaDays", "number")
		case n <= 0:
			fe.add("etaDays", "gt")
		default:
			draft.EtaDays = n
		}
	}
	if !fe.has("adminSourceUrl") {
		if !IsHTTPURL(form.AdminSourceURL) {
			fe.add("adminSourceUrl", "http_url")
		} else {
			draft.AdminSourceURL = form.AdminSourceURL
		}
	}
	if form.ImageURL != "" {
		if !IsHTTPURL(form.ImageURL) {
			fe.add("imageUrl", "http_url")
		} else {
			draft.ImageURL = &form.ImageURL
		}
	}
	if form.Note != "" {
		draft.Note = &form.Note
	}

	if len(fe) > 0 {
		return OfferDraft{}, &ValidationError{Fields: fe}
	}
	return draft, nil
}

// ValidateInput runs the struct's validate tags and reports every failing
// field as a *ValidationError.
func ValidateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fe := fieldErrors{}
	for _, e := range verrs {
		fe.add(e.Field(), e.Tag())
	}
	return &ValidationError{Fields: fe}
}

// NewRequest validates a submission and builds the NEW request owned by userID.
func NewRequest(userID uuid.UUID, in model.SubmitRequest, now time.Time) (*model.Request, []Effect, error) {
	productURL := strings.TrimSpace(in.ProductURL)
	if !IsHTTPURL(productURL) {
		return nil, nil, model.ErrInvalidProductURL
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = model.DefaultCurrency
	}
	if err := validate.Var(currency, "iso4217"); err != nil {
		return nil, nil, &ValidationError{Fields: []model.FieldError{{Field: "currency", Reason: "iso4217"}}}
	}

	req := &model.Request{
		ID:            uuid.New(),
		UserID:        userID,
		ProductURL:    productURL,
		Currency:      currency,
		Status:        model.StatusNew,
		PaymentStatus: model.PaymentNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.TitleHint != nil {
		if t := strings.TrimSpace(*in.TitleHint); t != "" {
			req.TitleHint = &t
		}
	}
	if in.OriginalPrice != nil && !math.IsNaN(*in.OriginalPrice) && !math.IsInf(*in.OriginalPrice, 0) {
		p := decimal.NewFromFloat(*in.OriginalPrice).Round(0)
		switch {
		case p.IsNegative():
			return nil, nil, &ValidationError{Fields: []model.FieldError{{Field: "originalPrice", Reason: "gte"}}}
		case p.GreaterThanOrEqual(priceLimit):
			return nil, nil, &ValidationError{Fields: []model.FieldError{{Field: "originalPrice", Reason: "max"}}}
		}
		req.OriginalPrice = &p
	}

	return req, []Effect{{Event: notify.EventAdminNewRequest, Audience: notify.AudienceAdmin}}, nil
}

// NormalizeReason trims a free-text reason and truncates it to MaxReasonLength runes.
func NormalizeReason(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if utf8.RuneCountInString(s) > MaxReasonLength {
		s = string([]rune(s)[:MaxReasonLength])
	}
	return &s
}

// IsHTTPURL reports whether raw is an absolute http or https URL.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// PriceScale is the number of decimal places stored for a price.
const PriceScale = 2

// priceLimit is the first value that no longer fits NUMERIC(12,2).
var priceLimit = decimal.New(1, 10)

type fieldErrors []model.FieldError

func (f *fieldErrors) add(field, reason string) {
	if f.has(field) {
		return
	}
	*f = append(*f, model.FieldError{Field: field, Reason: reason})
}

func (f fieldErrors) has(field string) bool {
	for _, e := range f {
		if e.Field == field {
			return true
		}
	}
	return false
}

func (f *fieldErrors) price(field, raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		f.add(field, "numeric")
		return decimal.Zero
	}
	switch {
	case d.IsNegative():
		f.add(field, "gte")
		return decimal.Zero
	case d.GreaterThanOrEqual(priceLimit):
		f.add(field, "max")
		return decimal.Zero
	case !d.Equal(d.Round(PriceScale)):
		f.add(field, "decimals")
		return decimal.Zero
	}
	return d
}
