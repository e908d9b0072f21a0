package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequired(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "valid", value: "Write", want: ""},
		{name: "trimmed before counting", value: "  Write  ", want: ""},
		{name: "empty", value: "", want: "Title is required"},
		{name: "whitespace only", value: "   ", want: "Title is required"},
		{name: "too long", value: "abcdef", want: "Title must be less than 5 characters"},
		{name: "unicode within limit", value: "ŽŽŽŽŽ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Required("Title", 5)(tt.value))
		})
	}
}

func TestEmail(t *testing.T) {
	valid := []string{"a@b.co", "john.doe@example.com", "x-y@mail.example.org"}
	invalid := []string{"", "plain", "a@b", "a@b.toolongtld", "@x.com", "a b@x.com"}

	for _, v := range valid {
		assert.Empty(t, Email()(v), v)
	}
	for _, v := range invalid {
		assert.Equal(t, "Please provide a valid email", Email()(v), v)
	}
}

func TestPersonName(t *testing.T) {
	fv := New().
		Validate("firstName", "A", PersonName("First name")...).
		Validate("lastName", "O'Brien", PersonName("Last name")...)

	var verr *Error
	require.ErrorAs(t, fv.Err(), &verr)
	assert.Equal(t, []FieldError{
		{Field: "firstName", Message: "First name must be between 2 and 50 characters"},
		{Field: "lastName", Message: "Last name can only contain letters and spaces"},
	}, verr.Fields)

	assert.NoError(t, New().Validate("firstName", "Mary Ann", PersonName("First name")...).Err())
}

func TestByteRange(t *testing.T) {
	v := ByteRange("Password", 6, 72)
	assert.NotEmpty(t, v("12345"))
	assert.Empty(t, v("123456"))
	assert.Empty(t, v(strings.Repeat("x", 72)))
	assert.NotEmpty(t, v(strings.Repeat("x", 73)))
	assert.Empty(t, v("  pad "), "passwords are not trimmed")
}

func TestOneOf(t *testing.T) {
	v := OneOf("Status", "Pending", "In Progress", "Completed")
	assert.Empty(t, v("In Progress"))
	assert.Equal(t, "Status must be one of: Pending, In Progress, Completed", v("done"))
	assert.NotEmpty(t, v("pending"))
}

func TestFieldValidator_OptionalAndCheck(t *testing.T) {
	blank := ""
	name := "Bo"
	fv := New().
		Optional("email", nil, Email()).
		Optional("firstName", &name, PersonName("First name")...).
		Optional("lastName", &blank, PersonName("Last name")...).
		Check(false, "dueDate", "Due date cannot be in the past").
		Check(false, "dueDate", "second failure is ignored")

	err := fv.Err()
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "lastName", verr.Fields[0].Field)
	assert.Equal(t, "Due date cannot be in the past", verr.Fields[1].Message)
	assert.Contains(t, err.Error(), "validation failed: lastName:")
}

func TestFieldValidator_NoErrors(t *testing.T) {
	assert.NoError(t, New().Err())
	assert.NoError(t, New().Validate("title", "ok", Required("Title", 255)).Err())
}
