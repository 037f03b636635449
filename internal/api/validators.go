package api

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"order-gateway/internal/service"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	phonePattern = regexp.MustCompile(`^\+[0-9]{11}$`)
	registerOnce sync.Once
)

// RegisterValidators adds the phone and cardnumber tags to gin's validator
// and reports fields by their JSON names.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})

		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("cardnumber", func(fl validator.FieldLevel) bool {
			return service.ValidCardNumber(fl.Field().String())
		})
	})
}
