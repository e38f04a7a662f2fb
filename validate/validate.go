package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

var translator ut.Translator

func init() {

	validate = validator.New()

	// Report JSON names so messages match what the client sent.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Money fields are compared as numbers by rules such as gte=0.
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		d, ok := v.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		return d.InexactFloat64()
	}, decimal.Decimal{})

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, translator)
}

// Check validates val against its struct tags and returns the first failure
// as a readable English message.
func Check(val any) error {
	if err := validate.Struct(val); err != nil {

		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		if len(verrors) < 1 {
			return nil
		}

		return errors.New(verrors[0].Translate(translator))
	}

	return nil
}

func GenerateID() string {
	return uuid.NewString()
}

func CheckID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("ID is not in its proper form")
	}
	return nil
}
