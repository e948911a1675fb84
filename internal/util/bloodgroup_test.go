package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBloodGroup(t *testing.T) {
	cases := []struct {
		input   string
		want    string
		matched bool
	}{
		{input: "B-Negative", want: "B-", matched: true},
		{input: "o positive", want: "O+", matched: true},
		{input: "O+ve", want: "O+", matched: true},
		{input: "o +", want: "O+", matched: true},
		{input: "AB+", want: "AB+", matched: true},
		{input: "ab negative", want: "AB-", matched: true},
		{input: "A -ve", want: "A-", matched: true},
		{input: " b pos ", want: "B+", matched: true},
		{input: "B-Positive", want: "B+", matched: true},
		{input: "O-Positive", want: "O+", matched: true},
		{input: "A-positive", want: "A+", matched: true},
		{input: "AB-Positive", want: "AB+", matched: true},
		{input: "ab-neg", want: "AB-", matched: true},
		{input: "O-pos", want: "O+", matched: true},
		{input: "A (-)", want: "A-", matched: true},
		{input: "b-", want: "B-", matched: true},
		{input: "XYZ", want: "XYZ", matched: false},
		{input: "don't know", want: "DON'T KNOW", matched: false},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, matched := NormalizeBloodGroup(tc.input)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, *got)
			assert.Equal(t, tc.matched, matched)
		})
	}

	got, matched := NormalizeBloodGroup("   ")
	assert.Nil(t, got)
	assert.True(t, matched)
}

func TestMembershipCategory(t *testing.T) {
	cases := []struct {
		input      string
		want       string
		recognized bool
	}{
		{input: "Full Membership", want: CategoryFull, recognized: true},
		{input: "Full membership renewal", want: CategoryFull, recognized: true},
		{input: "OVERSEAS member", want: CategoryOverseas, recognized: true},
		{input: "Associate", want: CategoryAssociate, recognized: true},
		{input: "student", want: CategoryStudent, recognized: true},
		{input: "Renewal 2024", want: CategoryRenewal, recognized: true},
		{input: "", want: CategoryStudent, recognized: true},
		{input: "Honorary", want: CategoryStudent, recognized: false},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, recognized := MembershipCategory(tc.input)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.recognized, recognized)
		})
	}
}
