// Package cards maps compact integer identifiers to prediction cards.
//
// A card is fully determined by its identifier: the decode is a fixed base-10
// digit decomposition, and every lookup table is indexed modulo its own length,
// so any identifier in range decodes without error. Two cards with the same
// identifier are interchangeable.
package cards

import "fmt"

// MaxCardID bounds the identifier space to four decimal digits.
const MaxCardID uint32 = 9999

type PredictionType string

const (
	PriceUp        PredictionType = "price-up"
	PriceDown      PredictionType = "price-down"
	PriceAbove     PredictionType = "price-above"
	PriceBelow     PredictionType = "price-below"
	MarketCapAbove PredictionType = "mcap-above"
	VolumeAbove    PredictionType = "volume-above"
	PctChange      PredictionType = "pct-change"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Lookup tables are configuration data. Indexing is always modulo length;
// changing a table's size changes which cards decode to what, so these are
// consensus-critical and must stay stable.
var (
	Assets = []string{"BTC", "ETH", "SOL", "BNB", "XRP", "ADA", "DOGE", "DOT", "LINK", "AVAX"}

	PredictionTypes = []PredictionType{
		PriceUp, PriceDown, PriceAbove, PriceBelow, MarketCapAbove, VolumeAbove, PctChange,
	}

	Directions = []Direction{Up, Down}

	// Relative thresholds in basis points, applied to the reference metric.
	TargetRangesBps = []uint32{250, 500, 750, 1000, 1500, 2000, 3000, 5000, 10000, 25000}

	// Percentage-change magnitude thresholds in basis points.
	PctChangeRangesBps = []uint32{50, 100, 200, 300, 500, 1000, 2000, 5000}
)

// Card is the decoded value form of an identifier.
type Card struct {
	ID uint32

	AssetIndex     int
	TypeIndex      int
	DirectionIndex int
	TargetIndex    int

	Asset     string
	Type      PredictionType
	Direction Direction

	// TargetBps is set for the threshold types, PctChangeBps for pct-change.
	TargetBps    uint32
	PctChangeBps uint32
}

// Decode extracts a card from its identifier. It is total over [0, MaxCardID]:
// units digit -> asset, tens -> prediction type, hundreds -> direction,
// thousands -> target range.
func Decode(id uint32) (Card, error) {
	if id > MaxCardID {
		return Card{}, fmt.Errorf("card id %d out of range [0,%d]", id, MaxCardID)
	}

	assetIdx := int(id % 10)
	typeIdx := int(id / 10 % 10)
	dirIdx := int(id / 100 % 10)
	targetIdx := int(id / 1000 % 10)

	c := Card{
		ID:             id,
		AssetIndex:     assetIdx,
		TypeIndex:      typeIdx,
		DirectionIndex: dirIdx,
		TargetIndex:    targetIdx,

		Asset:     Assets[assetIdx%len(Assets)],
		Type:      PredictionTypes[typeIdx%len(PredictionTypes)],
		Direction: Directions[dirIdx%len(Directions)],

		TargetBps:    TargetRangesBps[targetIdx%len(TargetRangesBps)],
		PctChangeBps: PctChangeRangesBps[targetIdx%len(PctChangeRangesBps)],
	}
	return c, nil
}

// PointsTable carries the fixed per-class point values.
type PointsTable struct {
	UpDown       uint32
	Threshold    uint32
	MarketMetric uint32
	PctChange    uint32
}

// Points returns the full-credit value for this card's prediction class.
func (c Card) Points(pt PointsTable) uint32 {
	switch c.Type {
	case PriceUp, PriceDown:
		return pt.UpDown
	case PriceAbove, PriceBelow:
		return pt.Threshold
	case MarketCapAbove, VolumeAbove:
		return pt.MarketMetric
	case PctChange:
		return pt.PctChange
	default:
		return 0
	}
}

func (c Card) String() string {
	switch c.Type {
	case PctChange:
		return fmt.Sprintf("%s %s %s>=%dbps", c.Asset, c.Type, c.Direction, c.PctChangeBps)
	case PriceUp, PriceDown:
		return fmt.Sprintf("%s %s", c.Asset, c.Type)
	default:
		return fmt.Sprintf("%s %s %dbps", c.Asset, c.Type, c.TargetBps)
	}
}
