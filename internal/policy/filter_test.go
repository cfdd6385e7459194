package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var v *Violation
	require.True(t, errors.As(err, &v), "expected *Violation, got %v", err)
	return v.Reason
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Reason
	}{
		{"email", "contact me at a@b.com", ReasonEmail},
		{"email with plus", "write to jane.doe+jobs@mail.example.org please", ReasonEmail},
		{"phone spaced", "call me 06 12 34 56 78", ReasonPhone},
		{"phone dashed", "my number is 555-123-4567", ReasonPhone},
		{"phone international", "+33 6 12 34 56 78", ReasonPhone},
		{"url scheme", "see https://example.com/cv", ReasonURL},
		{"url www", "portfolio on www.example.com", ReasonURL},
		{"email before url", "mail a@b.com or visit https://x.io", ReasonEmail},
		{"phone compact", "text 0612345678 after six", ReasonPhone},
		{"phone parenthesized", "(555) 123-4567", ReasonPhone},
		{"phone shaped like a date", "0612-34-56-78", ReasonPhone},
		{"phone next to a date", "on 2024-03-01 call 555 123 4567", ReasonPhone},
		{"phone before url", "https://x.io or 0612345678", ReasonPhone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.content)
			require.Error(t, err)
			assert.Equal(t, tc.want, reasonOf(t, err))
		})
	}
}

func TestValidateAllows(t *testing.T) {
	allowed := []string{
		"Hello, I am interested in the internship.",
		"The salary is 45000 per year",
		"Interview on 2024-01-15 at 10:30",
		"I have 3 years of experience",
		"Room 12, building 4",
		"Salary range 50000-70000 per year",
		"Salary range 100000 - 120000",
		"Interview on 2024-03-01 10:30",
		"Available 01/03/2024 14:00 or 02/03/2024 09:30",
		"",
	}

	for _, content := range allowed {
		assert.NoError(t, Validate(content), content)
	}
}

func TestViolationUserMessage(t *testing.T) {
	err := Validate("a@b.com")
	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "a@b.com", v.Match)
	assert.Contains(t, v.UserMessage(), "email")
	assert.Contains(t, v.Error(), "email")

	unknown := &Violation{Reason: "other"}
	assert.NotEmpty(t, unknown.UserMessage())
}
