package quote

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/common"
	"github.com/noah-isme/atoll-quote/internal/engine"
	"github.com/noah-isme/atoll-quote/internal/markup"
	"github.com/noah-isme/atoll-quote/internal/occupancy"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
)

// CalculateRequest is the client-facing quote input. Structural checks live
// in the validate tags; business rules (leg counts, date ordering, occupancy)
// are left to the engine so they surface as validation items.
type CalculateRequest struct {
	ClientName           string            `json:"client_name" validate:"required,max=200"`
	ClientEmail          string            `json:"client_email,omitempty" validate:"omitempty,email,max=254"`
	CurrencyCode         string            `json:"currency_code" validate:"required,len=3,alpha"`
	ValidityDays         int               `json:"validity_days,omitempty" validate:"gte=0"`
	BookingDate          string            `json:"booking_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Legs                 []LegRequest      `json:"legs" validate:"dive"`
	InterResortTransfers []TransferRequest `json:"inter_resort_transfers,omitempty" validate:"dive"`
	MarkupOverride       *OverrideRequest  `json:"markup_override,omitempty"`
}

// LegRequest is one resort stay of a CalculateRequest.
type LegRequest struct {
	ResortID                    string         `json:"resort_id" validate:"required"`
	RoomTypeID                  string         `json:"room_type_id" validate:"required"`
	CheckIn                     string         `json:"check_in,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CheckOut                    string         `json:"check_out,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Adults                      int            `json:"adults" validate:"gte=0,lte=50"`
	Children                    []ChildRequest `json:"children,omitempty" validate:"max=20,dive"`
	MealPlanID                  string         `json:"meal_plan_id,omitempty"`
	TransferTypeID              string         `json:"transfer_type_id,omitempty"`
	ActivityIDs                 []string       `json:"activity_ids,omitempty" validate:"max=50,dive,required"`
	DiscountCodes               []string       `json:"discount_codes,omitempty" validate:"max=10,dive,required,max=64"`
	RemovedFestiveSupplementIDs []string       `json:"removed_festive_supplement_ids,omitempty" validate:"dive,required"`
}

// ChildRequest is one child of a leg. The age is a pointer so that a missing
// age reaches the engine as such.
type ChildRequest struct {
	Age       *int   `json:"age"`
	AgeBandID string `json:"age_band_id,omitempty"`
}

// TransferRequest moves the party between two legs by 0-based position.
type TransferRequest struct {
	FromLegIndex   int    `json:"from_leg_index" validate:"gte=0"`
	ToLegIndex     int    `json:"to_leg_index" validate:"gte=0"`
	TransferTypeID string `json:"transfer_type_id" validate:"required"`
}

// OverrideRequest is a quote-level markup override.
type OverrideRequest struct {
	Type   string `json:"type" validate:"required,oneof=FIXED PERCENTAGE"`
	Amount string `json:"amount" validate:"required,numeric"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the structural rules of the request.
func (r CalculateRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.NewAppError("VALIDATION_ERROR", "invalid request", http.StatusBadRequest, err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fieldPath(fe.Namespace()), Rule: fe.Tag(), Param: fe.Param()})
	}
	return common.NewAppError("VALIDATION_ERROR", "invalid request", http.StatusBadRequest, err).WithDetails(fields)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// ToInput converts a validated request into engine input. Dates were checked
// by Validate, so parse failures here are reported as validation errors too.
func (r CalculateRequest) ToInput() (engine.QuoteInput, error) {
	in := engine.QuoteInput{
		ClientName:   strings.TrimSpace(r.ClientName),
		ClientEmail:  strings.TrimSpace(r.ClientEmail),
		CurrencyCode: strings.ToUpper(strings.TrimSpace(r.CurrencyCode)),
		ValidityDays: r.ValidityDays,
	}
	var err error
	if in.BookingDate, err = optionalDate("booking_date", r.BookingDate); err != nil {
		return engine.QuoteInput{}, err
	}
	for i, leg := range r.Legs {
		li := engine.LegInput{
			ResortID:                    leg.ResortID,
			RoomTypeID:                  leg.RoomTypeID,
			Adults:                      leg.Adults,
			MealPlanID:                  leg.MealPlanID,
			TransferTypeID:              leg.TransferTypeID,
			ActivityIDs:                 leg.ActivityIDs,
			DiscountCodes:               leg.DiscountCodes,
			RemovedFestiveSupplementIDs: leg.RemovedFestiveSupplementIDs,
		}
		if li.CheckIn, err = optionalDate(fmt.Sprintf("legs[%d].check_in", i), leg.CheckIn); err != nil {
			return engine.QuoteInput{}, err
		}
		if li.CheckOut, err = optionalDate(fmt.Sprintf("legs[%d].check_out", i), leg.CheckOut); err != nil {
			return engine.QuoteInput{}, err
		}
		for _, c := range leg.Children {
			li.Children = append(li.Children, occupancy.ChildInput{Age: c.Age, AgeBandID: c.AgeBandID})
		}
		in.Legs = append(in.Legs, li)
	}
	for _, t := range r.InterResortTransfers {
		in.InterResortTransfers = append(in.InterResortTransfers, engine.TransferInput{
			FromLegIndex:   t.FromLegIndex,
			ToLegIndex:     t.ToLegIndex,
			TransferTypeID: t.TransferTypeID,
		})
	}
	if o := r.MarkupOverride; o != nil {
		amount, err := pricing.MoneyFromString(o.Amount)
		if err != nil {
			return engine.QuoteInput{}, invalidField("markup_override.amount", "numeric")
		}
		in.MarkupOverride = &markup.Override{Type: refdata.MarkupType(o.Type), Amount: amount}
	}
	return in, nil
}

func optionalDate(field, value string) (calendar.Date, error) {
	if strings.TrimSpace(value) == "" {
		return calendar.Date{}, nil
	}
	d, err := calendar.ParseDate(value)
	if err != nil {
		return calendar.Date{}, invalidField(field, "datetime")
	}
	return d, nil
}

func invalidField(field, rule string) error {
	return common.NewAppError("VALIDATION_ERROR", "invalid request", http.StatusBadRequest, nil).
		WithDetails([]FieldError{{Field: field, Rule: rule}})
}
