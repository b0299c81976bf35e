package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-replication/pkg/ldapmod"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Replication server ids travel as 16 bit values inside CSNs.
	MinServerID = 1
	MaxServerID = 65535

	// Group id 255 means "no group" on the wire.
	MaxGroupID = 254

	// Transport schemes the session layer can dial.
	EndpointSchemes = []string{"tcp", "ipc", "inproc"}
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// report yaml keys, which is what users write
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	mustRegister("dn", func(fl validator.FieldLevel) bool {
		return ValidateDN(fl.Field().String()) == nil
	})
	mustRegister("serverid", func(fl validator.FieldLevel) bool {
		return ValidateServerID(int(fl.Field().Int())) == nil
	})
	mustRegister("endpoint", func(fl validator.FieldLevel) bool {
		return ValidateEndpoint(fl.Field().String()) == nil
	})
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
}

// Struct validates s against its `validate` tags and reports every
// failing field.
func Struct(s any) error {
	if s == nil {
		return errors.New("value cannot be nil")
	}
	return formatValidationError(validate.Struct(s))
}

// ValidateDN checks that dn parses as an LDAP distinguished name.
func ValidateDN(dn string) error {
	if dn == "" {
		return errors.New("DN cannot be empty")
	}
	return ldapmod.CheckDN(dn)
}

// ValidateServerID checks that id fits a CSN server id.
func ValidateServerID(id int) error {
	if id < MinServerID || id > MaxServerID {
		return fmt.Errorf("server id %d outside [%d, %d]", id, MinServerID, MaxServerID)
	}
	return nil
}

// ValidateEndpoint checks a transport address such as tcp://host:8989,
// ipc:///tmp/repl.sock or inproc://rs1.
func ValidateEndpoint(addr string) error {
	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("endpoint %q: %w", addr, err)
	}
	switch u.Scheme {
	case "tcp":
		if _, _, err := net.SplitHostPort(u.Host); err != nil {
			return fmt.Errorf("endpoint %q: %w", addr, err)
		}
	case "ipc":
		if u.Path == "" {
			return fmt.Errorf("endpoint %q: missing socket path", addr)
		}
	case "inproc":
		if u.Host == "" && u.Opaque == "" {
			return fmt.Errorf("endpoint %q: missing name", addr)
		}
	default:
		return fmt.Errorf("endpoint %q: scheme must be one of %v", addr, EndpointSchemes)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	errs := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := e.Namespace()
		param := e.Param()

		switch e.Tag() {
		case "required":
			errs = append(errs, fmt.Errorf("%s: field is required", field))
		case "min", "gte":
			errs = append(errs, fmt.Errorf("%s: must be at least %s", field, param))
		case "max", "lte":
			errs = append(errs, fmt.Errorf("%s: must not exceed %s", field, param))
		case "oneof":
			errs = append(errs, fmt.Errorf("%s: must be one of [%s]", field, param))
		case "dn":
			errs = append(errs, fmt.Errorf("%s: %q is not a valid DN", field, e.Value()))
		case "serverid":
			errs = append(errs, fmt.Errorf("%s: must be a server id in [%d, %d]", field, MinServerID, MaxServerID))
		case "endpoint":
			errs = append(errs, fmt.Errorf("%s: %q is not a valid endpoint", field, e.Value()))
		default:
			errs = append(errs, fmt.Errorf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return errors.Join(errs...)
}
