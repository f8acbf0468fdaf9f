package enums

// PriceDirection summarizes how a price moved between two observations.
type PriceDirection string

const (
	PriceUp   PriceDirection = "up"
	PriceDown PriceDirection = "down"
	PriceFlat PriceDirection = "flat"
)

// DirectionFromSign maps a comparison result (-1, 0, 1) to a PriceDirection.
func DirectionFromSign(sign int) PriceDirection {
	switch {
	case sign > 0:
		return PriceUp
	case sign < 0:
		return PriceDown
	default:
		return PriceFlat
	}
}
