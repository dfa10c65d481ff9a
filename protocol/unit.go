package protocol

import "fmt"

// Unit is the 32-bit IEEE 1451 TEDs-style encoding of a physical
// quantity: whether the value is digital or SI, its numeric format, an
// optional SI modifier, and nine signed base-unit exponents (mass,
// length, time, electric current, thermodynamic temperature, luminous
// intensity, amount of substance, plane angle, and a scratch bit used
// by Digital units to select a concrete quantity code).
//
// Bit layout, MSB first:
//
//	[31]    Digital (0) or SI (1)
//	[30:29] NumericFormat (for SI) / reserved (for Digital)
//	[28:26] SIModifier
//	[25:0]  nine signed 3-bit exponents, each biased by +4
//
// Digital units instead pack a 26-bit Quantity code into bits [25:0].
type Unit uint32

const exponentBias = 4

// NumericFormat selects the wire encoding of values carried under an SI Unit.
type NumericFormat uint8

const (
	FormatI32 NumericFormat = 0
	FormatI64 NumericFormat = 1
	FormatF32 NumericFormat = 2
	FormatD64 NumericFormat = 3
)

// SIModifier scales an SI unit by a power of ten.
type SIModifier uint8

const (
	ModifierNone  SIModifier = 0
	ModifierKilo  SIModifier = 1
	ModifierMega  SIModifier = 2
	ModifierGiga  SIModifier = 3
	ModifierMilli SIModifier = 4
	ModifierMicro SIModifier = 5
	ModifierNano  SIModifier = 6
	ModifierPico  SIModifier = 7
)

const siBit = uint32(1) << 31

// Quantity enumerates digital (non-SI) quantities TSTP nodes exchange
// that don't decompose into base SI exponents: control messages,
// actuator commands, and vendor-specific sensor kinds.
type Quantity uint32

const (
	QuantityControl    Quantity = 0
	QuantityActuator   Quantity = 1
	QuantityGPS        Quantity = 2
	QuantityBatteryLvl Quantity = 3
	QuantityRSSI       Quantity = 4
)

// NewSIUnit builds an SI Unit from a numeric format, modifier, and the
// nine signed base exponents (mass, length, time, current, temperature,
// luminous intensity, substance, plane angle, reserved).
func NewSIUnit(format NumericFormat, mod SIModifier, exps [9]int8) Unit {
	u := siBit | uint32(format&0x3)<<29 | uint32(mod&0x7)<<26
	for i, e := range exps {
		biased := uint32(e+exponentBias) & 0x7
		shift := uint(8-i) * 3
		u |= biased << shift
	}
	return Unit(u)
}

// NewDigitalUnit builds a Digital Unit carrying a Quantity code.
func NewDigitalUnit(q Quantity) Unit {
	return Unit(uint32(q) & 0x3ffffff)
}

// IsDigital reports whether the unit carries a Quantity code rather
// than SI base exponents.
func (u Unit) IsDigital() bool { return uint32(u)&siBit == 0 }

// Format returns the numeric wire format of an SI unit. The result is
// undefined for a Digital unit.
func (u Unit) Format() NumericFormat { return NumericFormat(uint32(u) >> 29 & 0x3) }

// Modifier returns the SI modifier of an SI unit.
func (u Unit) Modifier() SIModifier { return SIModifier(uint32(u) >> 26 & 0x7) }

// Exponent returns the i'th (0-8) signed base exponent of an SI unit.
func (u Unit) Exponent(i int) int8 {
	shift := uint(8-i) * 3
	biased := uint32(u) >> shift & 0x7
	return int8(biased) - exponentBias
}

// Quantity returns the digital quantity code of a Digital unit. The
// result is undefined for an SI unit.
func (u Unit) Quantity() Quantity { return Quantity(uint32(u) & 0x3ffffff) }

func (u Unit) String() string {
	if u.IsDigital() {
		return fmt.Sprintf("Digital(%d)", u.Quantity())
	}
	return fmt.Sprintf("SI(format=%d,mod=%d)", u.Format(), u.Modifier())
}

// Value is the payload carried alongside a Unit: a numeric reading
// whose Go type matches the Unit's NumericFormat.
type Value struct {
	I32 int32
	I64 int64
	F32 float32
	D64 float64
}

// ValueFor builds a Value holding x under the given format, zeroing
// the fields that don't apply.
func ValueFor(format NumericFormat, x float64) Value {
	switch format {
	case FormatI32:
		return Value{I32: int32(x)}
	case FormatI64:
		return Value{I64: int64(x)}
	case FormatF32:
		return Value{F32: float32(x)}
	default:
		return Value{D64: x}
	}
}

// Float64 returns v's reading as a float64, reading whichever field
// matches format.
func (v Value) Float64(format NumericFormat) float64 {
	switch format {
	case FormatI32:
		return float64(v.I32)
	case FormatI64:
		return float64(v.I64)
	case FormatF32:
		return float64(v.F32)
	default:
		return v.D64
	}
}
