package customer

import (
	"math"
	"math/rand"
	"strconv"
)

// Random draws a schema-valid record with categories from the reference
// value lists. Numeric fields are non-negative and TotalCharges is roughly
// tenure times MonthlyCharges.
func Random(rng *rand.Rand) Record {
	var rec Record
	for _, f := range schema {
		var v value
		switch f.Type {
		case TypeString:
			v.s = f.Values[rng.Intn(len(f.Values))]
		case TypeInteger:
			v.i, _ = strconv.Atoi(f.Values[rng.Intn(len(f.Values))])
		case TypeNumber:
			continue
		}
		f.set(&rec, v)
	}
	rec.Tenure = float64(rng.Intn(73))
	rec.MonthlyCharges = math.Round((18+rng.Float64()*101)*100) / 100
	rec.TotalCharges = math.Round(rec.MonthlyCharges*math.Max(rec.Tenure, 1)*(0.9+0.2*rng.Float64())*100) / 100
	return rec
}
