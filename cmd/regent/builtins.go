package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rickchristie/regent"
	"github.com/rickchristie/regent/schema"
	"github.com/rickchristie/regent/toolbox"
)

var builtinDeclarations = []toolbox.Declaration{
	toolbox.Declare("clock", "Current date and time. Argument: an IANA time zone such as Asia/Tokyo, or empty for UTC."),
	toolbox.Declare("word_count", "Count the words in the argument text."),
}

// builtins holds the CLI's method-declared tools.
type builtins struct {
	clock regent.TimeProvider
}

func (b *builtins) Clock(arg string) (string, error) {
	zone := strings.Trim(strings.TrimSpace(arg), `"'`)
	if zone == "" {
		zone = "UTC"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return fmt.Sprintf("unknown time zone %q", zone), nil
	}
	return b.clock.Now().In(loc).Format("Monday, 2 January 2006 15:04 MST"), nil
}

func (b *builtins) WordCount(arg string) string {
	return fmt.Sprintf("%d", len(strings.Fields(strings.Trim(arg, `"'`))))
}

const convertDescription = "Convert a length or weight between units (m, km, mi, ft, kg, lb)."

var convertSchema = schema.MustCompile(schema.Object(map[string]*schema.Property{
	"value": schema.Number("Quantity to convert"),
	"from":  schema.String("Source unit").Enum("m", "km", "mi", "ft", "kg", "lb"),
	"to":    schema.String("Target unit").Enum("m", "km", "mi", "ft", "kg", "lb"),
}, "value", "from", "to"))

type conversion struct {
	Value float64 `json:"value"`
	From  string  `json:"from"`
	To    string  `json:"to"`
}

// unitFactors converts to the base unit of each dimension: metres or kilograms.
var unitFactors = map[string]struct {
	dimension string
	factor    float64
}{
	"m":  {"length", 1},
	"km": {"length", 1000},
	"mi": {"length", 1609.344},
	"ft": {"length", 0.3048},
	"kg": {"mass", 1},
	"lb": {"mass", 0.45359237},
}

func convertUnits(_ context.Context, c conversion) (string, error) {
	from, to := unitFactors[c.From], unitFactors[c.To]
	if from.dimension != to.dimension {
		return fmt.Sprintf("cannot convert %s to %s", c.From, c.To), nil
	}
	result := c.Value * from.factor / to.factor
	return fmt.Sprintf("%g %s = %.4g %s", c.Value, c.From, result, c.To), nil
}
