// Package filter translates declarative list filters into predicates over
// records and into SQL conditions. Every filter is a value type: a zero
// field imposes no constraint and present fields are combined with AND.
//
// SQL conditions assume the list queries alias customers as c, products
// as p and orders as o.
package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/safar/crm-service/internal/models"
)

// Predicate selects records. A nil Predicate matches everything.
type Predicate[T any] func(T) bool

func (p Predicate[T]) Match(v T) bool {
	return p == nil || p(v)
}

func all[T any](preds []Predicate[T]) Predicate[T] {
	if len(preds) == 0 {
		return nil
	}
	return func(v T) bool {
		for _, p := range preds {
			if !p(v) {
				return false
			}
		}
		return true
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func prefixPattern(s string) string {
	return likeEscaper.Replace(s) + "%"
}

// IntRange is inclusive; either bound may be nil.
type IntRange struct {
	Min *int
	Max *int
}

func (r IntRange) IsZero() bool { return r.Min == nil && r.Max == nil }

func (r IntRange) Contains(v int) bool {
	return (r.Min == nil || v >= *r.Min) && (r.Max == nil || v <= *r.Max)
}

func (r IntRange) where(column string) []sq.Sqlizer {
	var conds []sq.Sqlizer
	if r.Min != nil {
		conds = append(conds, sq.GtOrEq{column: *r.Min})
	}
	if r.Max != nil {
		conds = append(conds, sq.LtOrEq{column: *r.Max})
	}
	return conds
}

// DecimalRange is inclusive; either bound may be nil.
type DecimalRange struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

func (r DecimalRange) IsZero() bool { return r.Min == nil && r.Max == nil }

func (r DecimalRange) Contains(v decimal.Decimal) bool {
	return (r.Min == nil || v.GreaterThanOrEqual(*r.Min)) && (r.Max == nil || v.LessThanOrEqual(*r.Max))
}

func (r DecimalRange) where(column string) []sq.Sqlizer {
	var conds []sq.Sqlizer
	if r.Min != nil {
		conds = append(conds, sq.GtOrEq{column: *r.Min})
	}
	if r.Max != nil {
		conds = append(conds, sq.LtOrEq{column: *r.Max})
	}
	return conds
}

// DateRange is inclusive at day granularity; either bound may be nil.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (r DateRange) IsZero() bool { return r.From == nil && r.To == nil }

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (r DateRange) Contains(v time.Time) bool {
	d := day(v)
	return (r.From == nil || !d.Before(day(*r.From))) && (r.To == nil || !d.After(day(*r.To)))
}

func (r DateRange) where(column string) []sq.Sqlizer {
	var conds []sq.Sqlizer
	if r.From != nil {
		conds = append(conds, sq.GtOrEq{column: r.From.Format(models.DateLayout)})
	}
	if r.To != nil {
		conds = append(conds, sq.LtOrEq{column: r.To.Format(models.DateLayout)})
	}
	return conds
}

// CustomerFilter matches customers. Name, Email and Phone are
// case-insensitive substrings; PhonePattern is a phone prefix.
type CustomerFilter struct {
	Name         string
	Email        string
	Phone        string
	PhonePattern string
}

func (f CustomerFilter) Predicate() Predicate[models.Customer] {
	var preds []Predicate[models.Customer]
	if f.Name != "" {
		preds = append(preds, func(c models.Customer) bool { return containsFold(c.Name, f.Name) })
	}
	if f.Email != "" {
		preds = append(preds, func(c models.Customer) bool { return containsFold(c.Email, f.Email) })
	}
	if f.Phone != "" {
		preds = append(preds, func(c models.Customer) bool { return containsFold(c.Phone, f.Phone) })
	}
	if f.PhonePattern != "" {
		preds = append(preds, func(c models.Customer) bool { return strings.HasPrefix(c.Phone, f.PhonePattern) })
	}
	return all(preds)
}

func (f CustomerFilter) Where() sq.Sqlizer {
	conds := sq.And{}
	if f.Name != "" {
		conds = append(conds, sq.ILike{"c.name": containsPattern(f.Name)})
	}
	if f.Email != "" {
		conds = append(conds, sq.ILike{"c.email": containsPattern(f.Email)})
	}
	if f.Phone != "" {
		conds = append(conds, sq.ILike{"c.phone": containsPattern(f.Phone)})
	}
	if f.PhonePattern != "" {
		conds = append(conds, sq.Like{"c.phone": prefixPattern(f.PhonePattern)})
	}
	return conds
}

// ProductFilter matches products. LowStock selects stock strictly below
// the given value.
type ProductFilter struct {
	Name     string
	Price    DecimalRange
	Stock    IntRange
	LowStock *int
}

func (f ProductFilter) Predicate() Predicate[models.Product] {
	var preds []Predicate[models.Product]
	if f.Name != "" {
		preds = append(preds, func(p models.Product) bool { return containsFold(p.Name, f.Name) })
	}
	if !f.Price.IsZero() {
		preds = append(preds, func(p models.Product) bool { return f.Price.Contains(p.Price) })
	}
	if !f.Stock.IsZero() {
		preds = append(preds, func(p models.Product) bool { return f.Stock.Contains(p.Stock) })
	}
	if f.LowStock != nil {
		threshold := *f.LowStock
		preds = append(preds, func(p models.Product) bool { return p.Stock < threshold })
	}
	return all(preds)
}

func (f ProductFilter) Where() sq.Sqlizer {
	conds := sq.And{}
	if f.Name != "" {
		conds = append(conds, sq.ILike{"p.name": containsPattern(f.Name)})
	}
	conds = append(conds, f.Price.where("p.price")...)
	conds = append(conds, f.Stock.where("p.stock")...)
	if f.LowStock != nil {
		conds = append(conds, sq.Lt{"p.stock": *f.LowStock})
	}
	return conds
}

// OrderFilter matches orders. CustomerName applies to the joined customer
// and ProductName matches when any of the order's products matches.
type OrderFilter struct {
	CustomerName string
	ProductName  string
	TotalAmount  DecimalRange
	OrderDate    DateRange
}

func (f OrderFilter) Predicate() Predicate[models.Order] {
	var preds []Predicate[models.Order]
	if f.CustomerName != "" {
		preds = append(preds, func(o models.Order) bool { return containsFold(o.Customer.Name, f.CustomerName) })
	}
	if f.ProductName != "" {
		preds = append(preds, func(o models.Order) bool {
			for _, p := range o.Products {
				if containsFold(p.Name, f.ProductName) {
					return true
				}
			}
			return false
		})
	}
	if !f.TotalAmount.IsZero() {
		preds = append(preds, func(o models.Order) bool { return f.TotalAmount.Contains(o.TotalAmount) })
	}
	if !f.OrderDate.IsZero() {
		preds = append(preds, func(o models.Order) bool { return f.OrderDate.Contains(o.OrderDate) })
	}
	return all(preds)
}

func (f OrderFilter) Where() sq.Sqlizer {
	conds := sq.And{}
	if f.CustomerName != "" {
		conds = append(conds, sq.ILike{"c.name": containsPattern(f.CustomerName)})
	}
	if f.ProductName != "" {
		conds = append(conds, sq.Expr(
			`EXISTS (SELECT 1 FROM order_products op JOIN products pn ON pn.id = op.product_id
			 WHERE op.order_id = o.id AND pn.name ILIKE ?)`,
			containsPattern(f.ProductName)))
	}
	conds = append(conds, f.TotalAmount.where("o.total_amount")...)
	conds = append(conds, f.OrderDate.where("o.order_date")...)
	return conds
}

// Query keys shared by Values and the Parse functions.
const (
	KeyName           = "name"
	KeyEmail          = "email"
	KeyPhone          = "phone"
	KeyPhonePattern   = "phone_pattern"
	KeyPriceMin       = "price_min"
	KeyPriceMax       = "price_max"
	KeyStockMin       = "stock_min"
	KeyStockMax       = "stock_max"
	KeyLowStock       = "low_stock"
	KeyCustomerName   = "customer_name"
	KeyProductName    = "product_name"
	KeyTotalAmountMin = "total_amount_min"
	KeyTotalAmountMax = "total_amount_max"
	KeyOrderDateFrom  = "order_date_from"
	KeyOrderDateTo    = "order_date_to"
)

func setString(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func setInt(v url.Values, key string, value *int) {
	if value != nil {
		v.Set(key, strconv.Itoa(*value))
	}
}

func setDecimal(v url.Values, key string, value *decimal.Decimal) {
	if value != nil {
		v.Set(key, value.String())
	}
}

func setDate(v url.Values, key string, value *time.Time) {
	if value != nil {
		v.Set(key, value.Format(models.DateLayout))
	}
}

func (f CustomerFilter) Values() url.Values {
	v := url.Values{}
	setString(v, KeyName, f.Name)
	setString(v, KeyEmail, f.Email)
	setString(v, KeyPhone, f.Phone)
	setString(v, KeyPhonePattern, f.PhonePattern)
	return v
}

func (f ProductFilter) Values() url.Values {
	v := url.Values{}
	setString(v, KeyName, f.Name)
	setDecimal(v, KeyPriceMin, f.Price.Min)
	setDecimal(v, KeyPriceMax, f.Price.Max)
	setInt(v, KeyStockMin, f.Stock.Min)
	setInt(v, KeyStockMax, f.Stock.Max)
	setInt(v, KeyLowStock, f.LowStock)
	return v
}

func (f OrderFilter) Values() url.Values {
	v := url.Values{}
	setString(v, KeyCustomerName, f.CustomerName)
	setString(v, KeyProductName, f.ProductName)
	setDecimal(v, KeyTotalAmountMin, f.TotalAmount.Min)
	setDecimal(v, KeyTotalAmountMax, f.TotalAmount.Max)
	setDate(v, KeyOrderDateFrom, f.OrderDate.From)
	setDate(v, KeyOrderDateTo, f.OrderDate.To)
	return v
}

// parser collects the first malformed value of a query.
type parser struct {
	q   url.Values
	err error
}

func (p *parser) int(key string) *int {
	raw := strings.TrimSpace(p.q.Get(key))
	if raw == "" || p.err != nil {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.err = fmt.Errorf("invalid %s %q: must be an integer", key, raw)
		return nil
	}
	return &n
}

func (p *parser) decimal(key string) *decimal.Decimal {
	raw := strings.TrimSpace(p.q.Get(key))
	if raw == "" || p.err != nil {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		p.err = fmt.Errorf("invalid %s %q: must be a number", key, raw)
		return nil
	}
	return &d
}

func (p *parser) date(key string) *time.Time {
	raw := strings.TrimSpace(p.q.Get(key))
	if raw == "" || p.err != nil {
		return nil
	}
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		p.err = fmt.Errorf("invalid %s %q: must be a date as YYYY-MM-DD", key, raw)
		return nil
	}
	return &t
}

func ParseCustomerFilter(q url.Values) (CustomerFilter, error) {
	return CustomerFilter{
		Name:         strings.TrimSpace(q.Get(KeyName)),
		Email:        strings.TrimSpace(q.Get(KeyEmail)),
		Phone:        strings.TrimSpace(q.Get(KeyPhone)),
		PhonePattern: strings.TrimSpace(q.Get(KeyPhonePattern)),
	}, nil
}

func ParseProductFilter(q url.Values) (ProductFilter, error) {
	p := &parser{q: q}
	f := ProductFilter{
		Name:     strings.TrimSpace(q.Get(KeyName)),
		Price:    DecimalRange{Min: p.decimal(KeyPriceMin), Max: p.decimal(KeyPriceMax)},
		Stock:    IntRange{Min: p.int(KeyStockMin), Max: p.int(KeyStockMax)},
		LowStock: p.int(KeyLowStock),
	}
	return f, p.err
}

func ParseOrderFilter(q url.Values) (OrderFilter, error) {
	p := &parser{q: q}
	f := OrderFilter{
		CustomerName: strings.TrimSpace(q.Get(KeyCustomerName)),
		ProductName:  strings.TrimSpace(q.Get(KeyProductName)),
		TotalAmount:  DecimalRange{Min: p.decimal(KeyTotalAmountMin), Max: p.decimal(KeyTotalAmountMax)},
		OrderDate:    DateRange{From: p.date(KeyOrderDateFrom), To: p.date(KeyOrderDateTo)},
	}
	return f, p.err
}
