package rowvalue

import (
	"math"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
)

// decimalCtx is used for tolerance arithmetic. Subtraction of two decimals
// within this precision is exact.
var decimalCtx = apd.BaseContext.WithPrecision(200)

// CompareOptions configures value equality.
type CompareOptions struct {
	Sentinels       SentinelSet
	CaseInsensitive bool
	// Tolerance is the maximum absolute numeric difference treated as equal.
	Tolerance *apd.Decimal
	// RelTolerance widens Tolerance by this fraction of the larger magnitude
	// of the two values. Numeric comparison is disabled unless one of the
	// tolerances is positive.
	RelTolerance *apd.Decimal
}

// NewCompareOptions builds options from plain configuration. A nil sentinel
// list selects DefaultSentinels.
func NewCompareOptions(
	sentinels []string, caseInsensitive bool, tolerance float64,
) (CompareOptions, error) {
	if sentinels == nil {
		sentinels = DefaultSentinels()
	}
	opts := CompareOptions{
		Sentinels:       NewSentinelSet(sentinels),
		CaseInsensitive: caseInsensitive,
	}
	d, err := parseTolerance("numeric tolerance", tolerance)
	if err != nil {
		return opts, err
	}
	opts.Tolerance = d
	return opts, nil
}

// WithRelativeTolerance returns a copy of the options which also accept
// numeric differences up to rel times the larger absolute value.
func (o CompareOptions) WithRelativeTolerance(rel float64) (CompareOptions, error) {
	d, err := parseTolerance("relative tolerance", rel)
	if err != nil {
		return o, err
	}
	o.RelTolerance = d
	return o, nil
}

// parseTolerance returns nil for zero.
func parseTolerance(what string, f float64) (*apd.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil, errors.Newf("%s must be a finite number >= 0, got %v", what, f)
	}
	if f == 0 {
		return nil, nil
	}
	d, err := new(apd.Decimal).SetFloat64(f)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s %v", what, f)
	}
	return d, nil
}

func positive(d *apd.Decimal) bool {
	return d != nil && d.Sign() > 0
}

func (o CompareOptions) toleranceEnabled() bool {
	return positive(o.Tolerance) || positive(o.RelTolerance)
}

// Canonical normalizes sentinels to null and folds case when comparison is
// case-insensitive. Identities and row hashes are computed over canonical
// values.
func (o CompareOptions) Canonical(v Value) Value {
	v = o.Sentinels.Normalize(v)
	if v.Valid && o.CaseInsensitive {
		v.Text = strings.ToUpper(v.Text)
	}
	return v
}

// Equal reports whether two values are equal under the options. It never
// fails: values which do not parse as numbers are compared as text.
func (o CompareOptions) Equal(a, b Value) bool {
	a = o.Sentinels.Normalize(a)
	b = o.Sentinels.Normalize(b)
	switch {
	case !a.Valid && !b.Valid:
		return true
	case !a.Valid || !b.Valid:
		return false
	}
	if o.toleranceEnabled() {
		if eq, ok := o.numericEqual(a.Text, b.Text); ok {
			return eq
		}
	}
	if o.CaseInsensitive {
		return strings.ToUpper(a.Text) == strings.ToUpper(b.Text)
	}
	return a.Text == b.Text
}

// numericEqual returns ok=false if either side is not a finite number.
func (o CompareOptions) numericEqual(a, b string) (eq bool, ok bool) {
	da, ok := parseDecimal(a)
	if !ok {
		return false, false
	}
	db, ok := parseDecimal(b)
	if !ok {
		return false, false
	}
	var diff apd.Decimal
	if _, err := decimalCtx.Sub(&diff, da, db); err != nil {
		return false, false
	}
	diff.Abs(&diff)

	var allowed apd.Decimal
	if positive(o.Tolerance) {
		allowed.Set(o.Tolerance)
	}
	if positive(o.RelTolerance) {
		var mag, absB, rel apd.Decimal
		mag.Abs(da)
		absB.Abs(db)
		if absB.Cmp(&mag) > 0 {
			mag.Set(&absB)
		}
		if _, err := decimalCtx.Mul(&rel, &mag, o.RelTolerance); err != nil {
			return false, false
		}
		if _, err := decimalCtx.Add(&allowed, &allowed, &rel); err != nil {
			return false, false
		}
	}
	return diff.Cmp(&allowed) <= 0, true
}

func parseDecimal(s string) (*apd.Decimal, bool) {
	d, _, err := apd.NewFromString(strings.TrimSpace(s))
	if err != nil || d.Form != apd.Finite {
		return nil, false
	}
	return d, true
}
