package evecache

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AdoType is an OLE DB column type code (DBTYPE_*).
type AdoType uint16

const (
	AdoEmpty    AdoType = 0
	AdoNull     AdoType = 1
	AdoI2       AdoType = 2
	AdoI4       AdoType = 3
	AdoR4       AdoType = 4
	AdoR8       AdoType = 5
	AdoCurrency AdoType = 6
	AdoDate     AdoType = 7
	AdoBool     AdoType = 11
	AdoI1       AdoType = 16
	AdoUI1      AdoType = 17
	AdoUI2      AdoType = 18
	AdoUI4      AdoType = 19
	AdoI8       AdoType = 20
	AdoUI8      AdoType = 21
	AdoFileTime AdoType = 64
	AdoBytes    AdoType = 128
	AdoStr      AdoType = 129
	AdoWStr     AdoType = 130
)

var adoTypeNames = map[AdoType]string{
	AdoEmpty:    "empty",
	AdoNull:     "null",
	AdoI2:       "i2",
	AdoI4:       "i4",
	AdoR4:       "r4",
	AdoR8:       "r8",
	AdoCurrency: "cy",
	AdoDate:     "date",
	AdoBool:     "bool",
	AdoI1:       "i1",
	AdoUI1:      "ui1",
	AdoUI2:      "ui2",
	AdoUI4:      "ui4",
	AdoI8:       "i8",
	AdoUI8:      "ui8",
	AdoFileTime: "filetime",
	AdoBytes:    "bytes",
	AdoStr:      "str",
	AdoWStr:     "wstr",
}

// CurrencyScale is the number of decimal digits in a raw CY value.
const CurrencyScale = 4

// fileTimeEpochDelta is the Unix epoch expressed in FILETIME ticks (100ns since 1601-01-01).
const fileTimeEpochDelta = 116444736000000000

var oleEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func (t AdoType) Valid() bool {
	_, ok := adoTypeNames[t]
	return ok
}

func (t AdoType) String() string {
	if s, ok := adoTypeNames[t]; ok {
		return s
	}
	return "ado(" + strconv.Itoa(int(t)) + ")"
}

// ParseAdoType accepts either a type name (case-insensitive) or a numeric code.
func ParseAdoType(s string) (AdoType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range adoTypeNames {
		if name == s {
			return t, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || !AdoType(n).Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAdoType, s)
	}
	return AdoType(n), nil
}

// Width returns the number of bytes a column of this type occupies in a
// packed row, or 0 for types stored outside the fixed-width area (Bool is
// stored as a single bit, variable-width types as separate values).
func (t AdoType) Width() int {
	switch t {
	case AdoI8, AdoUI8, AdoR8, AdoCurrency, AdoFileTime, AdoDate:
		return 8
	case AdoI4, AdoUI4, AdoR4:
		return 4
	case AdoI2, AdoUI2:
		return 2
	case AdoI1, AdoUI1:
		return 1
	default:
		return 0
	}
}

// IsVariable reports whether the type is stored as a separate value after
// a packed row.
func (t AdoType) IsVariable() bool {
	return t == AdoBytes || t == AdoStr || t == AdoWStr
}

func (t AdoType) intRange() (int64, int64, bool) {
	switch t {
	case AdoI1:
		return math.MinInt8, math.MaxInt8, true
	case AdoI2:
		return math.MinInt16, math.MaxInt16, true
	case AdoI4:
		return math.MinInt32, math.MaxInt32, true
	case AdoI8, AdoFileTime:
		return math.MinInt64, math.MaxInt64, true
	case AdoUI1:
		return 0, math.MaxUint8, true
	case AdoUI2:
		return 0, math.MaxUint16, true
	case AdoUI4:
		return 0, math.MaxUint32, true
	case AdoUI8:
		// values above MaxInt64 arrive wrapped into negative int64s
		return math.MinInt64, math.MaxInt64, true
	default:
		return 0, 0, false
	}
}

// conform checks that v is acceptable for a column of type t and returns
// its canonical form. shapeErr is set for container values where a scalar
// is expected.
func (t AdoType) conform(v Value) (result Value, ok bool, shapeErr bool) {
	if v.kind == KindNone {
		return v, true, false
	}
	if v.kind.IsContainer() || v.kind == KindSharedRef {
		return Value{}, false, true
	}
	switch t {
	case AdoEmpty, AdoNull:
		return Value{}, false, false
	case AdoI1, AdoI2, AdoI4, AdoI8, AdoUI1, AdoUI2, AdoUI4, AdoUI8, AdoFileTime:
		if v.kind != KindInt {
			return Value{}, false, false
		}
		lo, hi, _ := t.intRange()
		if n := int64(v.num); n < lo || n > hi {
			return Value{}, false, false
		}
		return v, true, false
	case AdoR4, AdoR8, AdoDate:
		switch v.kind {
		case KindFloat:
			return v, true, false
		case KindInt:
			return Float(float64(int64(v.num))), true, false
		}
		return Value{}, false, false
	case AdoCurrency:
		switch v.kind {
		case KindInt:
			return v, true, false
		case KindFloat:
			f := math.Float64frombits(v.num)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return Value{}, false, false
			}
			d := decimal.NewFromFloat(f).Shift(CurrencyScale).Round(0)
			if !d.BigInt().IsInt64() {
				return Value{}, false, false
			}
			return Int(d.IntPart()), true, false
		}
		return Value{}, false, false
	case AdoBool:
		switch v.kind {
		case KindBool:
			return v, true, false
		case KindInt:
			if v.num == 0 || v.num == 1 {
				return Bool(v.num == 1), true, false
			}
		}
		return Value{}, false, false
	case AdoStr, AdoWStr:
		if v.kind == KindStr {
			return v, true, false
		}
		return Value{}, false, false
	case AdoBytes:
		if v.kind == KindBytes || v.kind == KindStr {
			return Value{kind: KindBytes, str: v.str}, true, false
		}
		return Value{}, false, false
	default:
		return Value{}, false, false
	}
}

// CurrencyDecimal converts a raw CY value into a decimal amount.
func CurrencyDecimal(raw int64) decimal.Decimal {
	return decimal.New(raw, -CurrencyScale)
}

// FileTime converts a FILETIME (100ns ticks since 1601-01-01 UTC) to time.Time.
func FileTime(ticks int64) time.Time {
	unixTicks := ticks - fileTimeEpochDelta
	return time.Unix(unixTicks/1e7, (unixTicks%1e7)*100).UTC()
}

// ToFileTime is the inverse of FileTime.
func ToFileTime(t time.Time) int64 {
	return t.Unix()*1e7 + int64(t.Nanosecond())/100 + fileTimeEpochDelta
}

// OLE automation dates outside this range are invalid.
const (
	minOleDate = -657434.0
	maxOleDate = 2958466.0
)

// OleDate converts an OLE automation date (days since 1899-12-30) to time.Time.
// The fraction is the time of day regardless of sign, so -1.25 is 06:00 on
// 1899-12-29. Values outside the OLE range are clamped to it, NaN maps to the
// epoch.
func OleDate(days float64) time.Time {
	switch {
	case math.IsNaN(days):
		return oleEpoch
	case days < minOleDate:
		days = minOleDate
	case days >= maxOleDate:
		return oleEpoch.AddDate(0, 0, int(maxOleDate)).Add(-time.Nanosecond)
	}
	whole := math.Trunc(days)
	frac := math.Abs(days - whole)
	return oleEpoch.AddDate(0, 0, int(whole)).Add(time.Duration(frac * float64(24*time.Hour)))
}
