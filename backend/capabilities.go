package backend

import "slices"

// Capability represents a property that a backend can provide.
type Capability string

const (
	// Data survives Close and can be reopened.
	CapabilityPersistent Capability = "persistent"
	// A single field can be rewritten without touching unrelated fields.
	CapabilityInPlaceUpdate Capability = "in_place_update"
	// Array fields can change their stored length on overwrite.
	CapabilityResize Capability = "resize"
	// Floating point values round trip bit-for-bit.
	CapabilityExactFloat Capability = "exact_float"
	// Stored types and shapes can be recovered without a schema.
	CapabilitySelfDescribing Capability = "self_describing"
	// Storage lives behind a network service.
	CapabilityRemote Capability = "remote"
)

// Capabilities describes what a backend supports
type Capabilities struct {
	Capabilities []Capability `json:"capabilities"`
}

// Contains checks if a capability is supported
func (c *Capabilities) Contains(cap Capability) bool {
	return slices.Contains(c.Capabilities, cap)
}
