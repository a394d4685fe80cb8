package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "jobmatch/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseJobID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseJobID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseJobID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseJobID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, JobID(validUUID), id)
	})
}

func TestParseID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE job_applications;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseApplicantID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestAllIDTypes_ConsistentBehavior ensures all ID types parse identically.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errApp := ParseApplicationID(validUUID)
		_, errJob := ParseJobID(validUUID)
		_, errApplicant := ParseApplicantID(validUUID)
		_, errEntry := ParseAuditEntryID(validUUID)

		require.NoError(t, errApp)
		require.NoError(t, errJob)
		require.NoError(t, errApplicant)
		require.NoError(t, errEntry)
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errApp := ParseApplicationID(input)
			_, errJob := ParseJobID(input)
			_, errApplicant := ParseApplicantID(input)
			_, errEntry := ParseAuditEntryID(input)

			require.Error(t, errApp)
			require.Error(t, errJob)
			require.Error(t, errApplicant)
			require.Error(t, errEntry)
		})
	}
}

func TestTypeDistinction(t *testing.T) {
	jobID := JobID(uuid.New())
	applicantID := ApplicantID(uuid.New())

	// var _ JobID = applicantID would not compile.
	assert.NotEqual(t, uuid.UUID(jobID), uuid.UUID(applicantID))
	assert.False(t, jobID.IsNil())
	assert.True(t, JobID{}.IsNil())
}

func TestIDs_JSONRoundTripAsString(t *testing.T) {
	type payload struct {
		Job JobID `json:"job"`
	}
	want := JobID(uuid.New())

	b, err := json.Marshal(payload{Job: want})
	require.NoError(t, err)
	assert.JSONEq(t, `{"job":"`+want.String()+`"}`, string(b))

	var got payload
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, want, got.Job)
}
