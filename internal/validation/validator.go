// Package validation はgo-playground/validatorによるリクエスト構造体の検証を提供する。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/movieshelf/internal/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get はシングルトンのvalidatorインスタンスを返す。
// エラーメッセージのフィールド名にはjsonタグの名前を使用する。
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Struct は構造体を検証し、違反があればINVALID_REQUESTのAPIErrorを返す。
// 複数の違反はフィールド順に"; "で連結する。
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return model.NewInvalidRequestError(err.Error())
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, translate(fe))
	}
	return model.NewInvalidRequestError(strings.Join(messages, "; "))
}

// translate はFieldErrorを利用者向けのメッセージに変換する。
func translate(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "printascii":
		return fmt.Sprintf("%s must contain printable ASCII characters only", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
