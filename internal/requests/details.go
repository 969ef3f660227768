package requests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
)

// DetailKind tags the per-type payload attached to a request.
type DetailKind string

const (
	DetailNone    DetailKind = ""
	DetailPrint   DetailKind = "print"
	DetailDigital DetailKind = "digital"
	DetailSignage DetailKind = "signage"
	DetailVideo   DetailKind = "video"
)

// DetailPayload is implemented by every known detail variant.
type DetailPayload interface {
	Kind() DetailKind
}

type PrintDetails struct {
	Size        string `json:"size" validate:"required,max=40"`
	Quantity    int    `json:"quantity" validate:"required,min=1,max=100000"`
	PaperStock  string `json:"paper_stock" validate:"max=80"`
	DoubleSided bool   `json:"double_sided"`
	ColorMode   string `json:"color_mode" validate:"omitempty,oneof=color grayscale"`
}

func (PrintDetails) Kind() DetailKind { return DetailPrint }

type DigitalDetails struct {
	Channel  string `json:"channel" validate:"required,oneof=web social email display"`
	WidthPx  int    `json:"width_px" validate:"required,min=1,max=20000"`
	HeightPx int    `json:"height_px" validate:"required,min=1,max=20000"`
	Format   string `json:"format" validate:"omitempty,oneof=png jpg gif svg webp"`
}

func (DigitalDetails) Kind() DetailKind { return DetailDigital }

type SignageDetails struct {
	WidthCm  float64 `json:"width_cm" validate:"required,gt=0"`
	HeightCm float64 `json:"height_cm" validate:"required,gt=0"`
	Material string  `json:"material" validate:"required,max=80"`
	Indoor   bool    `json:"indoor"`
	Quantity int     `json:"quantity" validate:"required,min=1"`
}

func (SignageDetails) Kind() DetailKind { return DetailSignage }

type VideoDetails struct {
	DurationSeconds int    `json:"duration_seconds" validate:"required,min=1,max=3600"`
	AspectRatio     string `json:"aspect_ratio" validate:"required,oneof=16:9 9:16 1:1 4:5"`
	Captions        bool   `json:"captions"`
	Platform        string `json:"platform" validate:"max=80"`
}

func (VideoDetails) Kind() DetailKind { return DetailVideo }

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

// DecodeDetails selects the variant for kind, decodes raw strictly and
// validates it. All field problems are returned together.
func DecodeDetails(kind DetailKind, raw json.RawMessage) (DetailPayload, []apierrors.FieldError) {
	trimmed := string(bytes.TrimSpace(raw))
	var payload DetailPayload
	switch kind {
	case DetailNone:
		if trimmed != "" && trimmed != "null" && trimmed != "{}" {
			return nil, []apierrors.FieldError{{Field: "detail_kind", Message: "detail_kind is required when details are supplied"}}
		}
		return nil, nil
	case DetailPrint:
		payload = &PrintDetails{}
	case DetailDigital:
		payload = &DigitalDetails{}
	case DetailSignage:
		payload = &SignageDetails{}
	case DetailVideo:
		payload = &VideoDetails{}
	default:
		return nil, []apierrors.FieldError{{Field: "detail_kind", Message: fmt.Sprintf("unknown detail kind %q", kind)}}
	}

	if trimmed == "" || trimmed == "null" {
		return nil, []apierrors.FieldError{{Field: "details", Message: "details are required for kind " + string(kind)}}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return nil, []apierrors.FieldError{{Field: "details", Message: "malformed details: " + err.Error()}}
	}

	if err := validate.Struct(payload); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, []apierrors.FieldError{{Field: "details", Message: err.Error()}}
		}
		out := make([]apierrors.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, apierrors.FieldError{
				Field:   "details." + fe.Field(),
				Message: describeFieldError(fe),
			})
		}
		return nil, out
	}
	return payload, nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// encodeDetails normalizes a payload to its stored JSON form.
func encodeDetails(p DetailPayload) (datatypes.JSON, error) {
	if p == nil {
		return datatypes.JSON("{}"), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
