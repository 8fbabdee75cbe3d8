package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type testSettings struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite postgres mysql"`
	Days   int    `mapstructure:"freshness_window_days" validate:"gte=0"`
	Label  string `json:"label" validate:"max=8"`
}

func TestValidateStructSuccess(t *testing.T) {
	settings := testSettings{
		Driver: "sqlite",
		Days:   30,
		Label:  "primary",
	}

	if err := ValidateStruct(settings); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	settings := testSettings{
		Driver: "oracle",
		Days:   -1,
		Label:  "much-too-long",
	}

	err := ValidateStruct(settings)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Tag
	}
	if fields["driver"] != "oneof" {
		t.Fatalf("expected driver to fail on oneof, got %v", fields)
	}
	if fields["freshness_window_days"] != "gte" {
		t.Fatalf("expected mapstructure name for days field, got %v", fields)
	}
	if fields["label"] != "max" {
		t.Fatalf("expected json name for label field, got %v", fields)
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "driver", Tag: "oneof", Param: "sqlite postgres mysql"},
		{Field: "path", Tag: "required"},
	}

	want := "driver failed on oneof=sqlite postgres mysql; path failed on required"
	if got := errs.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if got := (ValidationErrors{}).Error(); got != "validation failed" {
		t.Fatalf("empty Error() = %q", got)
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("urlcache_test", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "urlcache"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"urlcache_test"`
	}

	if err := ValidateStruct(custom{Value: "urlcache"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}
