package section

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func objects(b Bucket, ok bool) []string {
	if !ok {
		return nil
	}
	return b.Objects()
}

func TestReconstructSixNames(t *testing.T) {
	names := []string{"n0.jpg", "n1.jpg", "n2.jpg", "n3.jpg", "n4.jpg", "n5.jpg"}

	plan := Reconstruct(names, DefaultQuotas)

	assert.Equal(t, []string{"n0.jpg", "n1.jpg"}, objects(plan.Bucket("postes")))
	assert.Equal(t, []string{"n2.jpg"}, objects(plan.Bucket("seccionamento")))
	assert.Equal(t, []string{"n3.jpg"}, objects(plan.Bucket("aterramento")))
	assert.Equal(t, []string{"n4.jpg"}, objects(plan.Bucket("haste")))
	assert.Equal(t, []string{"n5.jpg"}, objects(plan.Bucket("termometro")))
	assert.Empty(t, plan.Omitted)
	assert.Empty(t, plan.Unassigned)
	assert.Equal(t, 6, plan.AssignedCount())
}

func TestReconstructThreeNames(t *testing.T) {
	plan := Reconstruct([]string{"a", "b", "c"}, DefaultQuotas)

	require.Len(t, plan.Buckets, 2)
	assert.Equal(t, []string{"a", "b"}, objects(plan.Bucket("postes")))
	assert.Equal(t, []string{"c"}, objects(plan.Bucket("seccionamento")))
	for _, s := range []string{"aterramento", "haste", "termometro"} {
		_, ok := plan.Bucket(s)
		assert.False(t, ok, s)
	}
	assert.Equal(t, []string{"aterramento", "haste", "termometro"}, plan.Omitted)
	assert.Empty(t, plan.Unassigned)
}

func TestReconstructPartialQuotaIsOmitted(t *testing.T) {
	plan := Reconstruct([]string{"only"}, DefaultQuotas)

	assert.Empty(t, plan.Buckets)
	assert.Equal(t, []string{"postes", "seccionamento", "aterramento", "haste", "termometro"}, plan.Omitted)
	assert.Equal(t, []Assignment{{Position: 0, Object: "only"}}, plan.Unassigned)
}

func TestReconstructExtraNamesAreUnassigned(t *testing.T) {
	names := []string{"0", "1", "2", "3", "4", "5", "6", "7"}

	plan := Reconstruct(names, DefaultQuotas)

	assert.Len(t, plan.Buckets, 5)
	assert.Equal(t, []Assignment{{Position: 6, Object: "6"}, {Position: 7, Object: "7"}}, plan.Unassigned)
}

func TestReconstructEmpty(t *testing.T) {
	plan := Reconstruct(nil, DefaultQuotas)
	assert.Empty(t, plan.Buckets)
	assert.Len(t, plan.Omitted, len(DefaultQuotas))
	assert.Empty(t, plan.Unassigned)
}

func TestReconstructKeepsPositions(t *testing.T) {
	plan := Reconstruct([]string{"a", "b", "c", "d"}, DefaultQuotas)

	b, ok := plan.Bucket("aterramento")
	require.True(t, ok)
	assert.Equal(t, []Assignment{{Position: 3, Object: "d"}}, b.Assignments)
}

func TestValidateQuotas(t *testing.T) {
	tests := []struct {
		name    string
		quotas  []Quota
		wantErr bool
	}{
		{name: "default", quotas: DefaultQuotas},
		{name: "empty", quotas: nil, wantErr: true},
		{name: "blank name", quotas: []Quota{{Section: " ", Count: 1}}, wantErr: true},
		{name: "zero count", quotas: []Quota{{Section: "postes", Count: 0}}, wantErr: true},
		{name: "duplicate", quotas: []Quota{{Section: "haste", Count: 1}, {Section: "haste", Count: 2}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuotas(tt.quotas)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuotas)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteAudit(t *testing.T) {
	plan := Reconstruct([]string{"p1.jpg", "p2.jpg", "s1.jpg", "x.jpg"}, []Quota{
		{Section: "postes", Count: 2},
		{Section: "seccionamento", Count: 1},
		{Section: "haste", Count: 2},
	})

	var buf bytes.Buffer
	require.NoError(t, plan.WriteAudit(&buf))

	want := "# best-effort reconstruction from listing order; verify before applying\n" +
		"postes (2)\n" +
		"  #0 p1.jpg\n" +
		"  #1 p2.jpg\n" +
		"seccionamento (1)\n" +
		"  #2 s1.jpg\n" +
		"haste: not assigned, listing exhausted\n" +
		"unassigned (1)\n" +
		"  #3 x.jpg\n"
	assert.Equal(t, want, buf.String())
}
