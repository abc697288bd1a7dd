// Package validate holds the field-level checks run before any write. The
// functions are pure: existence of referenced records is passed in by the
// caller.
package validate

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"
	"github.com/shopspring/decimal"

	"github.com/safar/crm-service/internal/database"
	"github.com/safar/crm-service/internal/models"
)

type Code string

const (
	Required      Code = "required"
	InvalidFormat Code = "invalid_format"
	InvalidRange  Code = "invalid_range"
)

// Error is a field-level validation failure.
type Error struct {
	Field  string
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsCode reports whether err is a validation Error with the given code.
func IsCode(err error, code Code) bool {
	var ve *Error
	return errors.As(err, &ve) && ve.Code == code
}

// Column limits of the schema in migrations/.
const (
	MaxNameLength  = 100
	MaxEmailLength = 254
	PriceScale     = 2
	MaxStock       = math.MaxInt32
)

// MaxPrice is the first price that no longer fits NUMERIC(10,2).
var MaxPrice = decimal.New(1, 8)

var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

func tooLong(field string, max int) *Error {
	return &Error{Field: field, Code: InvalidRange, Reason: fmt.Sprintf("must be at most %d characters", max)}
}

func required(field string) *Error {
	return &Error{Field: field, Code: Required, Reason: "this field is required"}
}

// Customer trims in and checks name, email and the optional phone.
func Customer(in models.CustomerInput) (models.CustomerInput, error) {
	out := models.CustomerInput{
		Name:  strings.TrimSpace(in.Name),
		Email: strings.TrimSpace(in.Email),
		Phone: strings.TrimSpace(in.Phone),
	}

	if out.Name == "" {
		return out, required("name")
	}
	if utf8.RuneCountInString(out.Name) > MaxNameLength {
		return out, tooLong("name", MaxNameLength)
	}
	if out.Email == "" {
		return out, required("email")
	}
	if utf8.RuneCountInString(out.Email) > MaxEmailLength {
		return out, tooLong("email", MaxEmailLength)
	}
	if !govalidator.IsEmail(out.Email) {
		return out, &Error{Field: "email", Code: InvalidFormat, Reason: "enter a valid email address"}
	}
	if out.Phone != "" && !phonePattern.MatchString(out.Phone) {
		return out, &Error{
			Field:  "phone",
			Code:   InvalidFormat,
			Reason: "phone number must be entered in the format '+999999999', 9 to 15 digits allowed",
		}
	}

	return out, nil
}

// Product trims the name and requires a positive price and stock.
func Product(in models.ProductInput) (models.ProductInput, error) {
	out := in
	out.Name = strings.TrimSpace(in.Name)

	if out.Name == "" {
		return out, required("name")
	}
	if utf8.RuneCountInString(out.Name) > MaxNameLength {
		return out, tooLong("name", MaxNameLength)
	}
	if !out.Price.IsPositive() {
		return out, &Error{Field: "price", Code: InvalidRange, Reason: "price must be greater than zero"}
	}
	if !out.Price.Equal(out.Price.Round(PriceScale)) {
		return out, &Error{Field: "price", Code: InvalidFormat, Reason: "price must have at most 2 decimal places"}
	}
	if out.Price.GreaterThanOrEqual(MaxPrice) {
		return out, &Error{Field: "price", Code: InvalidRange, Reason: "price must be less than 100000000"}
	}
	if out.Stock <= 0 {
		return out, &Error{Field: "stock", Code: InvalidRange, Reason: "stock must be greater than zero"}
	}
	if out.Stock > MaxStock {
		return out, &Error{Field: "stock", Code: InvalidRange, Reason: fmt.Sprintf("stock must be at most %d", MaxStock)}
	}

	return out, nil
}

// ValidOrder is an order input that passed Order. OrderDate is zero when the
// input did not carry one.
type ValidOrder struct {
	CustomerID int64
	ProductIDs []int64
	OrderDate  time.Time
}

// Order checks the shape of an order input. Duplicate product ids are
// collapsed keeping the first occurrence.
func Order(in models.OrderInput) (ValidOrder, error) {
	out := ValidOrder{CustomerID: in.CustomerID}

	if in.CustomerID <= 0 {
		return out, required("customer")
	}
	if len(in.ProductIDs) == 0 {
		return out, &Error{Field: "products", Code: Required, Reason: "at least one product is required"}
	}

	seen := make(map[int64]struct{}, len(in.ProductIDs))
	for _, id := range in.ProductIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out.ProductIDs = append(out.ProductIDs, id)
	}

	if in.OrderDate != "" {
		date, err := time.Parse(models.DateLayout, strings.TrimSpace(in.OrderDate))
		if err != nil {
			return out, &Error{Field: "order_date", Code: InvalidFormat, Reason: "enter a date as YYYY-MM-DD"}
		}
		out.OrderDate = date
	}

	return out, nil
}

// OrderReferences checks that the customer exists and that found holds
// every product the order references.
func OrderReferences(o ValidOrder, customerExists bool, found []models.Product) error {
	if !customerExists {
		return &database.NotFoundError{Entity: "customer", ID: o.CustomerID}
	}

	present := make(map[int64]struct{}, len(found))
	for _, p := range found {
		present[p.ID] = struct{}{}
	}

	var missing []int64
	for _, id := range o.ProductIDs {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return &database.ReferentialIntegrityError{Entity: "products", MissingIDs: missing}
	}

	return nil
}

// OrderTotal sums the product prices.
func OrderTotal(products []models.Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price)
	}
	return total
}

// StockValue is the value of a product's stock at its unit price.
func StockValue(p models.Product) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Stock)))
}
