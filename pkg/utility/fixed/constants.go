package fixed

var (
	NegOne = FromInt(-1, 0)
	Zero   = FromInt(0, 0)
	One    = FromInt(1, 0)
	Two    = FromInt(2, 0)
	Three  = FromInt(3, 0)
	Ten    = FromInt(10, 0)

	Hundred = FromInt(100, 0)

	PointOne  = FromInt(1, 1)
	PointFive = FromInt(5, 1)
)

// Scale is the number of fractional digits kept for account amounts and quantities.
const Scale = 8

// EffectivelyZero is the smallest amount distinguishable from zero at Scale.
var EffectivelyZero = FromInt(1, Scale)
