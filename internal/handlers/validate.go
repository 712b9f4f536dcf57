package handlers

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"pipshop/internal/models"
)

// Validation limits for catalog and checkout fields.
const (
	maxTitleLen   = 200
	maxNameLen    = 200
	maxBodyLen    = 100_000
	maxAddressLen = 1_000
	maxEmailLen   = 254
)

const fieldRequired = "This field is required."

// CheckoutForm is the customer details submitted at checkout.
type CheckoutForm struct {
	Email           string                `json:"email"`
	Email1          string                `json:"email1"`
	Name            string                `json:"name"`
	PaymentMethod   string                `json:"payment_method"`
	ShippingMethod  models.ShippingMethod `json:"shipping_method"`
	ShippingAddress string                `json:"shipping_address"`
	BillingAddress  string                `json:"billing_address"`
}

// methodChecker reports whether a payment method is enabled.
type methodChecker interface {
	Has(id string) bool
}

// Validate trims the form, fills in the addresses that are not asked for
// and returns the errors per field. Collected orders get "-" as their
// shipping address and the billing address is always "-".
func (f *CheckoutForm) Validate(methods methodChecker) map[string][]string {
	errs := map[string][]string{}
	add := func(field, msg string) { errs[field] = append(errs[field], msg) }

	f.Email = strings.TrimSpace(f.Email)
	f.Email1 = strings.TrimSpace(f.Email1)
	f.Name = strings.TrimSpace(f.Name)
	f.ShippingAddress = strings.TrimSpace(f.ShippingAddress)

	switch {
	case f.Email == "":
		add("email", fieldRequired)
	case utf8.RuneCountInString(f.Email) > maxEmailLen || !validEmail(f.Email):
		add("email", "Enter a valid email address.")
	}
	if f.Email1 == "" {
		add("email1", fieldRequired)
	} else if f.Email != "" && f.Email1 != f.Email {
		add("email1", "Email fields do not match")
	}

	if f.Name == "" {
		add("name", fieldRequired)
	} else if utf8.RuneCountInString(f.Name) > maxNameLen {
		add("name", "Name is too long (max 200 characters).")
	}

	if !methods.Has(f.PaymentMethod) {
		add("payment_method", "Select a valid choice.")
	}

	if !f.ShippingMethod.Valid() {
		add("shipping_method", "Select a valid choice.")
	}
	if f.ShippingMethod == models.ShippingCollect {
		f.ShippingAddress = "-"
	} else if f.ShippingAddress == "" {
		add("shipping_address", fieldRequired)
	} else if utf8.RuneCountInString(f.ShippingAddress) > maxAddressLen {
		add("shipping_address", "Address is too long (max 1,000 characters).")
	}
	f.BillingAddress = "-"

	return errs
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// validateCategory checks category inputs and returns the first error found.
func validateCategory(title, body string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Title is required."
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "Title is too long (max 200 characters)."
	}
	if utf8.RuneCountInString(body) > maxBodyLen {
		return "Body is too long (max 100,000 characters)."
	}
	return ""
}

// validateProduct checks product inputs and returns the first error found.
func validateProduct(name, description string, price decimal.Decimal) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Name is required."
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "Name is too long (max 200 characters)."
	}
	if utf8.RuneCountInString(description) > maxBodyLen {
		return "Description is too long (max 100,000 characters)."
	}
	if price.IsNegative() {
		return "Price cannot be negative."
	}
	return ""
}

// validateVariant checks variant inputs and returns the first error found.
func validateVariant(price decimal.NullDecimal, fields ...*string) string {
	if price.Valid && price.Decimal.IsNegative() {
		return "Price cannot be negative."
	}
	for _, f := range fields {
		if f != nil && utf8.RuneCountInString(*f) > maxNameLen {
			return "Variant fields are limited to 200 characters."
		}
	}
	return ""
}
