package executor

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/fentz26/simshell/internal/models"
)

// Excel error values.
const (
	ExcelValueError = "#VALUE!"
	ExcelNameError  = "#NAME?"
	ExcelDivZero    = "#DIV/0!"
)

var formulaRe = regexp.MustCompile(`^=?\s*([A-Za-z][A-Za-z0-9.]*)\s*\((.*)\)\s*$`)

// Excel evaluates single aggregate formulas over literal numbers.
type Excel struct {
	delay *Delayer
}

// NewExcel creates the excel executor.
func NewExcel(d *Delayer) *Excel {
	return &Excel{delay: d}
}

// Category returns excel.
func (e *Excel) Category() models.Category { return models.CategoryExcel }

// Execute evaluates SUM, AVERAGE, MIN, MAX and COUNT.
func (e *Excel) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := e.delay.Wait(ctx); err != nil {
		return nil, err
	}

	cmd := strings.TrimSpace(req.Command)
	m := formulaRe.FindStringSubmatch(cmd)
	if m == nil {
		return placeholder(e.Category(), cmd), nil
	}
	return ok(e.Category(), cmd, output(Evaluate(m[1], m[2]))), nil
}

// Evaluate computes fn over a comma-separated argument list and returns the
// cell text, or an Excel error value.
func Evaluate(fn, args string) string {
	fn = strings.ToUpper(fn)
	switch fn {
	case "SUM", "AVERAGE", "MIN", "MAX", "COUNT":
	default:
		return ExcelNameError
	}

	var nums []float64
	for _, raw := range strings.Split(args, ",") {
		a := strings.TrimSpace(raw)
		if a == "" {
			continue
		}
		n, err := strconv.ParseFloat(a, 64)
		if err != nil || !finite(n) {
			if fn == "COUNT" {
				continue
			}
			return ExcelValueError
		}
		nums = append(nums, n)
	}

	switch fn {
	case "COUNT":
		return strconv.Itoa(len(nums))
	case "SUM":
		return formatNumber(sum(nums))
	case "AVERAGE":
		if len(nums) == 0 {
			return ExcelDivZero
		}
		return formatNumber(sum(nums) / float64(len(nums)))
	}

	if len(nums) == 0 {
		return "0"
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if (fn == "MIN" && n < best) || (fn == "MAX" && n > best) {
			best = n
		}
	}
	return formatNumber(best)
}

func sum(nums []float64) float64 {
	var total float64
	for _, n := range nums {
		total += n
	}
	return total
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// formatNumber renders f, or #VALUE! when f overflowed.
func formatNumber(f float64) string {
	if !finite(f) {
		return ExcelValueError
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
