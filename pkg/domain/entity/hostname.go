package entity

import "strings"

// ApexDomain is the root domain every discovered hostname must belong to
type ApexDomain string

// String returns the apex as a plain string
func (a ApexDomain) String() string {
	return string(a)
}

// Hostname is a normalized, validated name under an ApexDomain.
// Values are lowercase, carry no trailing dot, scheme, port or path.
type Hostname string

// String returns the hostname as a plain string
func (h Hostname) String() string {
	return string(h)
}

// Label returns the part of the hostname left of the apex, or "" for the apex itself
func (h Hostname) Label(apex ApexDomain) string {
	if string(h) == string(apex) {
		return ""
	}
	return strings.TrimSuffix(string(h), "."+string(apex))
}
