package rowvalue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	for _, tc := range []struct {
		desc            string
		a, b            Value
		tolerance       float64
		relTolerance    float64
		caseInsensitive bool
		sentinels       []string
		expected        bool
	}{
		{desc: "both null", a: Null(), b: Null(), expected: true},
		{desc: "one null", a: Null(), b: Of("x"), expected: false},
		{desc: "sentinel empty vs null", a: Of(""), b: Null(), expected: true},
		{desc: "sentinel dot vs lower null", a: Of("."), b: Of("null"), expected: true},
		{desc: "sentinel vs value", a: Of("."), b: Of("0"), expected: false},
		{desc: "custom sentinels", a: Of("N/A"), b: Null(), sentinels: []string{"n/a"}, expected: true},
		{desc: "custom sentinels drop defaults", a: Of("."), b: Null(), sentinels: []string{"n/a"}, expected: false},
		{desc: "case sensitive", a: Of("Paris"), b: Of("PARIS"), expected: false},
		{desc: "case insensitive", a: Of("Paris"), b: Of("PARIS"), caseInsensitive: true, expected: true},
		{desc: "numeric text without tolerance", a: Of("1.0"), b: Of("1.00"), expected: false},
		{desc: "tolerance exact boundary", a: Of("10.00"), b: Of("10.01"), tolerance: 0.01, expected: true},
		{desc: "tolerance exceeded", a: Of("10.00"), b: Of("10.02"), tolerance: 0.01, expected: false},
		{desc: "tolerance exceeded by epsilon", a: Of("10"), b: Of("10.0100000001"), tolerance: 0.01, expected: false},
		{desc: "tolerance boundary long fraction", a: Of("0.1234567890123456789"), b: Of("0.1334567890123456789"), tolerance: 0.01, expected: true},
		{desc: "tolerance trailing zeros", a: Of("1.0"), b: Of("1.00"), tolerance: 0.0001, expected: true},
		{desc: "tolerance negative values", a: Of("-5.5"), b: Of("-5.49"), tolerance: 0.01, expected: true},
		{desc: "tolerance exponent", a: Of("1e2"), b: Of("100.00005"), tolerance: 0.0001, expected: true},
		{desc: "tolerance one side text", a: Of("abc"), b: Of("1"), tolerance: 5, expected: false},
		{desc: "tolerance both text falls back", a: Of("abc"), b: Of("ABC"), tolerance: 5, caseInsensitive: true, expected: true},
		{desc: "tolerance infinity is text", a: Of("Infinity"), b: Of("Infinity"), tolerance: 1, expected: true},
		{desc: "tolerance surrounding whitespace", a: Of(" 3 "), b: Of("3.001"), tolerance: 0.01, expected: true},
		{desc: "relative tolerance boundary", a: Of("100"), b: Of("101"), relTolerance: 0.01, expected: true},
		{desc: "relative tolerance uses larger magnitude", a: Of("99"), b: Of("100"), relTolerance: 0.01, expected: true},
		{desc: "relative tolerance exceeded", a: Of("100"), b: Of("102"), relTolerance: 0.01, expected: false},
		{desc: "relative tolerance negative values", a: Of("-200"), b: Of("-202"), relTolerance: 0.01, expected: true},
		{desc: "relative tolerance near zero", a: Of("0"), b: Of("0.0000001"), relTolerance: 0.5, expected: false},
		{desc: "relative tolerance text falls back", a: Of("abc"), b: Of("abd"), relTolerance: 0.5, expected: false},
		{desc: "absolute and relative tolerance add", a: Of("100"), b: Of("101.5"), tolerance: 0.5, relTolerance: 0.01, expected: true},
		{desc: "absolute and relative tolerance exceeded", a: Of("100"), b: Of("101.6"), tolerance: 0.5, relTolerance: 0.01, expected: false},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			opts, err := NewCompareOptions(tc.sentinels, tc.caseInsensitive, tc.tolerance)
			require.NoError(t, err)
			opts, err = opts.WithRelativeTolerance(tc.relTolerance)
			require.NoError(t, err)
			require.Equal(t, tc.expected, opts.Equal(tc.a, tc.b))
			require.Equal(t, tc.expected, opts.Equal(tc.b, tc.a))
		})
	}
}

func TestNewCompareOptionsRejectsNegativeTolerance(t *testing.T) {
	_, err := NewCompareOptions(nil, false, -0.5)
	require.Error(t, err)

	opts, err := NewCompareOptions(nil, false, 0)
	require.NoError(t, err)
	_, err = opts.WithRelativeTolerance(-0.1)
	require.EqualError(t, err, "relative tolerance must be a finite number >= 0, got -0.1")
}

func TestCanonical(t *testing.T) {
	opts, err := NewCompareOptions(nil, true, 0)
	require.NoError(t, err)
	require.Equal(t, Null(), opts.Canonical(Of("null")))
	require.Equal(t, Of("ABC"), opts.Canonical(Of("abc")))

	opts, err = NewCompareOptions(nil, false, 0)
	require.NoError(t, err)
	require.Equal(t, Of("abc"), opts.Canonical(Of("abc")))
}
