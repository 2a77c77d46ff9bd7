package domain

import "strings"

// UnknownCustomer is returned when no extractor yields a name.
const UnknownCustomer = "Unknown customer"

// customerNameExtractor returns a display name for o, or false when its shape
// does not carry one.
type customerNameExtractor func(o Order) (string, bool)

// customerNameExtractors is evaluated in order; the first hit wins.
var customerNameExtractors = []customerNameExtractor{
	recordName,
	recordFullName,
	denormalizedName,
	recordEmail,
	denormalizedEmail,
	bareCustomerID,
}

// ResolveCustomerName returns the best display name for an order's customer.
func ResolveCustomerName(o Order) string {
	for _, extract := range customerNameExtractors {
		if name, ok := extract(o); ok {
			return name
		}
	}
	return UnknownCustomer
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

func recordName(o Order) (string, bool) {
	rec, ok := o.Customer.(CustomerRecord)
	if !ok {
		return "", false
	}
	return nonEmpty(rec.Name)
}

func recordFullName(o Order) (string, bool) {
	rec, ok := o.Customer.(CustomerRecord)
	if !ok {
		return "", false
	}
	return nonEmpty(rec.FirstName + " " + rec.LastName)
}

func denormalizedName(o Order) (string, bool) {
	return nonEmpty(o.CustomerName)
}

func recordEmail(o Order) (string, bool) {
	rec, ok := o.Customer.(CustomerRecord)
	if !ok {
		return "", false
	}
	return nonEmpty(rec.Email)
}

func denormalizedEmail(o Order) (string, bool) {
	return nonEmpty(o.CustomerEmail)
}

func bareCustomerID(o Order) (string, bool) {
	id, ok := o.Customer.(CustomerID)
	if !ok {
		return "", false
	}
	return nonEmpty(string(id))
}
