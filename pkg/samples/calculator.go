package samples

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jllopis/launcher/pkg/extension"
)

// CalculatorPriority ranks arithmetic answers above other samples.
const CalculatorPriority = 10

var (
	pairRe  = regexp.MustCompile(`(\d+\.?\d*)\s*([+\-*/])\s*(\d+\.?\d*)`)
	chainRe = regexp.MustCompile(`\d+\.?\d*(?:\s*[+\-*/]\s*\d+\.?\d*){2,}`)

	calcTriggers = []string{"calculate", "what's", "what is", "+", "-", "*", "/"}
)

// Calculator evaluates a single "number operator number" expression.
type Calculator struct {
	extension.Base
}

// NewCalculator returns the calculator extension.
func NewCalculator() *Calculator {
	return &Calculator{Base: extension.NewBase(extension.Descriptor{
		ID:          CalculatorID,
		Name:        "Calculator",
		Version:     "1.0.0",
		Author:      author,
		Description: "Performs simple calculations",
	})}
}

// OnAIQuery answers queries such as "calculate 2+2" or "what's 5*6".
// Chained expressions and division by zero are left unanswered.
func (c *Calculator) OnAIQuery(_ context.Context, query string, _ extension.LauncherContext) (*extension.Response, error) {
	lower := strings.ToLower(query)
	if !containsAny(lower, calcTriggers) {
		return nil, nil
	}

	loc := pairRe.FindStringSubmatchIndex(query)
	if loc == nil {
		return nil, nil
	}
	if chain := chainRe.FindStringIndex(query); chain != nil && chain[0] <= loc[0] && chain[1] >= loc[1] {
		return nil, nil
	}

	expr := query[loc[0]:loc[1]]
	a, err := strconv.ParseFloat(query[loc[2]:loc[3]], 64)
	if err != nil {
		return nil, nil
	}
	b, err := strconv.ParseFloat(query[loc[6]:loc[7]], 64)
	if err != nil {
		return nil, nil
	}
	result, ok := evaluate(a, query[loc[4]], b)
	if !ok {
		return nil, nil
	}

	return &extension.Response{
		Text:     expr + " = " + FormatNumber(result),
		Priority: CalculatorPriority,
	}, nil
}

func evaluate(a float64, op byte, b float64) (float64, bool) {
	var v float64
	switch op {
	case '+':
		v = a + b
	case '-':
		v = a - b
	case '*':
		v = a * b
	case '/':
		if b == 0 {
			return 0, false
		}
		v = a / b
	default:
		return 0, false
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// FormatNumber renders v the way the launcher displays numbers: a decimal
// point is always present ("4.0"), and very large or very small magnitudes
// use an exponent ("1.0E7").
func FormatNumber(v float64) string {
	abs := math.Abs(v)
	if abs != 0 && (abs >= 1e7 || abs < 1e-3) {
		s := strconv.FormatFloat(v, 'E', -1, 64)
		mant, exp, _ := strings.Cut(s, "E")
		if !strings.Contains(mant, ".") {
			mant += ".0"
		}
		n, _ := strconv.Atoi(exp)
		return mant + "E" + strconv.Itoa(n)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
