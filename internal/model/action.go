package model

import "math"

// HedgeAction is a human-friendly label for what happened to the hedge on a day.
// Keep these values stable; they are written to CSV and XLSX output.
type HedgeAction string

const (
	ActionHold       HedgeAction = "HOLD"
	ActionOpen       HedgeAction = "OPEN"
	ActionIncrease   HedgeAction = "INCREASE"
	ActionReduce     HedgeAction = "REDUCE"
	ActionClose      HedgeAction = "CLOSE"
	ActionLiquidated HedgeAction = "LIQUIDATED"
)

// PositionTolerance is the smallest contract change treated as a trade.
const PositionTolerance = 1e-6

func ActionFromPositions(before, after float64, liquidated bool) HedgeAction {
	switch {
	case liquidated:
		return ActionLiquidated
	case math.Abs(after-before) <= PositionTolerance:
		return ActionHold
	case before <= 0:
		return ActionOpen
	case after <= 0:
		return ActionClose
	case after > before:
		return ActionIncrease
	default:
		return ActionReduce
	}
}
