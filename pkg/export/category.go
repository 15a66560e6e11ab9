package export

import (
	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/core/search"
)

// Category groups reason code combinations for feasibility map colouring.
type Category int

const (
	CategorySuccess Category = iota
	CategoryOversized
	CategoryInvalidData
	CategoryError
	CategoryConvergence
	CategoryVoltage
	CategoryLoading
	CategoryConvergenceVoltage
	CategoryConvergenceLoading
	CategoryVoltageLoading
	CategoryAll
)

// Categories lists every category in legend order.
var Categories = []Category{
	CategorySuccess,
	CategoryOversized,
	CategoryInvalidData,
	CategoryError,
	CategoryConvergence,
	CategoryVoltage,
	CategoryLoading,
	CategoryConvergenceVoltage,
	CategoryConvergenceLoading,
	CategoryVoltageLoading,
	CategoryAll,
}

var categoryNames = map[Category]string{
	CategorySuccess:            "Success",
	CategoryOversized:          "OK but battery oversized",
	CategoryInvalidData:        "Invalid data",
	CategoryError:              "Runtime error",
	CategoryConvergence:        "Convergence failure",
	CategoryVoltage:            "Voltage violation",
	CategoryLoading:            "Loading violation",
	CategoryConvergenceVoltage: "Convergence & voltage",
	CategoryConvergenceLoading: "Convergence & loading",
	CategoryVoltageLoading:     "Voltage & loading",
	CategoryAll:                "Convergence & voltage & loading",
}

var categoryColors = map[Category]string{
	CategorySuccess:            "#2e7d32",
	CategoryOversized:          "#00bcd4",
	CategoryInvalidData:        "#795548",
	CategoryError:              "#9e9e9e",
	CategoryConvergence:        "#f08080",
	CategoryVoltage:            "#1e4fd8",
	CategoryLoading:            "#ff9800",
	CategoryConvergenceVoltage: "#d32f2f",
	CategoryConvergenceLoading: "#c2185b",
	CategoryVoltageLoading:     "#7b1fa2",
	CategoryAll:                "#212121",
}

func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return "unknown"
}

// Color returns the hex colour used on charts.
func (c Category) Color() string {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return "#ffffff"
}

// Categorize maps a row to its display category. Invalid data and runtime
// errors take precedence over physical violations; the oversized flag only
// matters when nothing else is wrong.
func Categorize(row search.Row) Category {
	if row.Error != "" {
		return CategoryError
	}
	r := row.Verdict.Reasons
	if r.Has(model.ReasonInvalidData) {
		return CategoryInvalidData
	}
	c := r.Has(model.ReasonConvergenceFailure)
	v := r.Has(model.ReasonVoltageViolation)
	l := r.Has(model.ReasonLoadingViolation)
	switch {
	case c && v && l:
		return CategoryAll
	case c && v:
		return CategoryConvergenceVoltage
	case c && l:
		return CategoryConvergenceLoading
	case v && l:
		return CategoryVoltageLoading
	case c:
		return CategoryConvergence
	case v:
		return CategoryVoltage
	case l:
		return CategoryLoading
	case r.Has(model.ReasonBatteryOversized):
		return CategoryOversized
	}
	return CategorySuccess
}
