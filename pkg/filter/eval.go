package filter

import (
	"fmt"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
)

// Reader is the minimal index surface filter evaluation needs: resolving a
// filterable attribute to its interned field id and fetching the posting
// list for an exact or ranged comparison. pkg/index.Index and pkg/query's
// read-transaction wrapper both satisfy it.
type Reader interface {
	FieldIDForFilter(field string) (id uint16, ok bool, err error)
	FacetStringDocidsByID(fieldID uint16, value string) (*roaring.Bitmap, error)
	FacetNumberRangeDocidsByID(fieldID uint16, min, max float64) (*roaring.Bitmap, error)
	AllDocids() (*roaring.Bitmap, error)
}

// Eval evaluates a parsed filter expression against r, returning the
// matching document ids. An Eval over an expression referencing a field
// that isn't filterable returns a user-facing error, per the invalid-filter
// error kind.
func Eval(r Reader, expr *Expr) (*roaring.Bitmap, error) {
	result := roaring.New()
	for _, and := range expr.Or {
		clause, err := evalAnd(r, and)
		if err != nil {
			return nil, err
		}
		result.Or(clause)
	}
	return result, nil
}

func evalAnd(r Reader, and *AndExpr) (*roaring.Bitmap, error) {
	var result *roaring.Bitmap
	for _, p := range and.And {
		bm, err := evalPrimary(r, p)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = bm
			continue
		}
		result.And(bm)
	}
	if result == nil {
		return r.AllDocids()
	}
	return result, nil
}

func evalPrimary(r Reader, p *Primary) (*roaring.Bitmap, error) {
	if p.SubExpr != nil {
		return Eval(r, p.SubExpr)
	}
	return evalComparison(r, p.Comparison)
}

func evalComparison(r Reader, c *Comparison) (*roaring.Bitmap, error) {
	fieldID, ok, err := r.FieldIDForFilter(c.Field)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("filter: field %q is not filterable", c.Field)
	}

	if c.In != nil {
		result := roaring.New()
		for _, v := range c.In {
			bm, err := r.FacetStringDocidsByID(fieldID, v.asString())
			if err != nil {
				return nil, err
			}
			result.Or(bm)
		}
		return result, nil
	}

	switch c.Op {
	case "=":
		return equalityMatch(r, fieldID, c.Value)
	case "!=":
		all, err := r.AllDocids()
		if err != nil {
			return nil, err
		}
		eq, err := equalityMatch(r, fieldID, c.Value)
		if err != nil {
			return nil, err
		}
		all.AndNot(eq)
		return all, nil
	case ">", ">=", "<", "<=":
		return rangeMatch(r, fieldID, c.Op, c.Value)
	default:
		return nil, fmt.Errorf("filter: unsupported operator %q", c.Op)
	}
}

func equalityMatch(r Reader, fieldID uint16, v *Value) (*roaring.Bitmap, error) {
	if v.Number != nil {
		return r.FacetNumberRangeDocidsByID(fieldID, *v.Number, *v.Number)
	}
	return r.FacetStringDocidsByID(fieldID, v.asString())
}

func rangeMatch(r Reader, fieldID uint16, op string, v *Value) (*roaring.Bitmap, error) {
	if v.Number == nil {
		return nil, fmt.Errorf("filter: operator %q requires a numeric value", op)
	}
	n := *v.Number
	switch op {
	case ">":
		return r.FacetNumberRangeDocidsByID(fieldID, nextAfter(n), maxFloat())
	case ">=":
		return r.FacetNumberRangeDocidsByID(fieldID, n, maxFloat())
	case "<":
		return r.FacetNumberRangeDocidsByID(fieldID, minFloat(), nextBefore(n))
	case "<=":
		return r.FacetNumberRangeDocidsByID(fieldID, minFloat(), n)
	}
	return nil, fmt.Errorf("filter: unsupported range operator %q", op)
}

func maxFloat() float64 { v, _ := strconv.ParseFloat("1.7976931348623157e+308", 64); return v }
func minFloat() float64 { return -maxFloat() }
func nextAfter(f float64) float64  { return f + 1e-9 }
func nextBefore(f float64) float64 { return f - 1e-9 }
