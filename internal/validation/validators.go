package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	emailPattern    = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	httpURLPattern  = regexp.MustCompile(`^https?://.+`)
	minPasswordSize = 6
	// bcrypt rejects longer inputs
	maxPasswordBytes = 72
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("car_category", validateCarCategory); err != nil {
		panic(fmt.Sprintf("failed to register car_category validator: %v", err))
	}
	if err := Validate.RegisterValidation("loose_email", validateLooseEmail); err != nil {
		panic(fmt.Sprintf("failed to register loose_email validator: %v", err))
	}
	if err := Validate.RegisterValidation("http_url", validateHTTPURL); err != nil {
		panic(fmt.Sprintf("failed to register http_url validator: %v", err))
	}
}

func validateCarCategory(fl validator.FieldLevel) bool {
	return ValidateCarCategory(fl.Field().String()) == nil
}

func validateLooseEmail(fl validator.FieldLevel) bool {
	return emailPattern.MatchString(fl.Field().String())
}

// http_url accepts the empty string so it can guard optional fields
func validateHTTPURL(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	return v == "" || httpURLPattern.MatchString(v)
}

// Struct validates s and converts failures into a ValidationError naming the first bad field
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperrors.Validation(describe(verrs[0]))
	}
	return apperrors.Validation("invalid request")
}

func describe(fe validator.FieldError) string {
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "loose_email", "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "http_url", "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "car_category":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(carCategoryNames(), ", "))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && !unicode.IsUpper(rune(s[i-1])) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks email against the accepted address shape
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return apperrors.Validation("email must be a valid email address")
	}
	return nil
}

// ValidatePassword enforces a minimum length in characters and the bcrypt byte ceiling
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordSize {
		return apperrors.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordSize))
	}
	if len(password) > maxPasswordBytes {
		return apperrors.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

// ValidateProfileImage accepts an empty value or an absolute http(s) URL
func ValidateProfileImage(url string) error {
	if url != "" && !httpURLPattern.MatchString(url) {
		return apperrors.Validation("profile_image must be a valid URL")
	}
	return nil
}

// ValidateCarCategory validates a CarCategory string value
func ValidateCarCategory(value string) error {
	switch models.CarCategory(value) {
	case models.CarCategorySedan, models.CarCategorySUV, models.CarCategoryLuxury,
		models.CarCategoryElectric, models.CarCategoryTruck, models.CarCategoryOther:
		return nil
	default:
		return fmt.Errorf("invalid category: %s (must be one of %s)", value, strings.Join(carCategoryNames(), ", "))
	}
}

func carCategoryNames() []string {
	return []string{
		string(models.CarCategorySedan),
		string(models.CarCategorySUV),
		string(models.CarCategoryLuxury),
		string(models.CarCategoryElectric),
		string(models.CarCategoryTruck),
		string(models.CarCategoryOther),
	}
}
