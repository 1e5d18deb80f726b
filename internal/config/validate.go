package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	dnsLabelPattern     = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]{0,61}[a-z0-9])?$`)
	chartVersionPattern = regexp.MustCompile(`^v?\d+\.\d+\.\d+(?:-[0-9A-Za-z-.]+)?$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		_ = v.RegisterValidation("dns_label", func(fl validator.FieldLevel) bool {
			return dnsLabelPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("chart_version", func(fl validator.FieldLevel) bool {
			return chartVersionPattern.MatchString(fl.Field().String())
		})

		v.RegisterTagNameFunc(yamlFieldName)

		validateInst = v
	})

	return validateInst
}

// yamlFieldName reports fields by their file key so errors point at what
// the user wrote.
func yamlFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// FieldError is one failed constraint.
type FieldError struct {
	Field string
	Rule  string
	Param string
}

func (e FieldError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: failed %s=%s", e.Field, e.Rule, e.Param)
	}
	return fmt.Sprintf("%s: failed %s", e.Field, e.Rule)
}

// ValidationError lists every failed constraint of a configuration.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("configuration is nil")
	}

	var fields []FieldError
	if err := validatorInstance().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field: strings.TrimPrefix(fe.Namespace(), "Config."),
				Rule:  fe.Tag(),
				Param: fe.Param(),
			})
		}
	}

	if c.Namespace == c.CertManager.Namespace {
		fields = append(fields, FieldError{Field: "namespace", Rule: "ne", Param: "certManager.namespace"})
	}
	if c.Readiness.MaxInterval > 0 && c.Readiness.MaxInterval < c.Readiness.Interval {
		fields = append(fields, FieldError{Field: "readiness.maxInterval", Rule: "gtefield", Param: "interval"})
	}
	if !strings.HasSuffix(c.LDAP.UserDNPattern, c.LDAP.BaseDN) {
		fields = append(fields, FieldError{Field: "ldap.userDNPattern", Rule: "endswith", Param: c.LDAP.BaseDN})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
