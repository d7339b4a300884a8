// capability.go

package talestoken

import (
	"encoding/json"
	"fmt"
)

// CapabilityFamily is a named, ordered, closed set of capability names.
// Every capability holds a stable zero-based ordinal, which is what the
// compact bitset representation is defined over. Families are built once,
// sealed, and never change afterwards.
type CapabilityFamily struct {
	name     string
	names    []string
	ordinals map[string]int
}

// FamilyBuilder accumulates capability names, in order, for a family.
type FamilyBuilder struct {
	name  string
	names []string
}

// NewCapabilityFamily starts building a family with the given name.
func NewCapabilityFamily(name string) *FamilyBuilder {
	return &FamilyBuilder{name: name}
}

// Add appends capability names in order. Ordinals are assigned by position.
func (b *FamilyBuilder) Add(names ...string) *FamilyBuilder {
	b.names = append(b.names, names...)
	return b
}

// Seal validates the accumulated names and produces the immutable family.
// Empty or duplicated names are configuration defects.
func (b *FamilyBuilder) Seal() (*CapabilityFamily, error) {
	if b.name == "" {
		return nil, fmt.Errorf("%w: capability family needs a name", ErrConfiguration)
	}
	family := &CapabilityFamily{
		name:     b.name,
		names:    make([]string, len(b.names)),
		ordinals: make(map[string]int, len(b.names)),
	}
	for i, name := range b.names {
		if name == "" {
			return nil, fmt.Errorf("%w: family %q contains an empty capability name", ErrConfiguration, b.name)
		}
		if _, dup := family.ordinals[name]; dup {
			return nil, fmt.Errorf("%w: family %q already contains capability %q", ErrConfiguration, b.name, name)
		}
		family.names[i] = name
		family.ordinals[name] = i
	}
	return family, nil
}

// Name returns the family name.
func (f *CapabilityFamily) Name() string {
	return f.name
}

// Size returns the number of capabilities in the family.
func (f *CapabilityFamily) Size() int {
	return len(f.names)
}

// Ordinal resolves a capability name to its position within the family.
func (f *CapabilityFamily) Ordinal(name string) (int, bool) {
	ordinal, ok := f.ordinals[name]
	return ordinal, ok
}

// Capabilities returns the capability names in ordinal order.
func (f *CapabilityFamily) Capabilities() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// NewSet creates a capability set over the family holding the given names.
// Names outside the family produce ErrUnknownCapability.
func (f *CapabilityFamily) NewSet(names ...string) (*CapabilitySet, error) {
	set := &CapabilitySet{
		family: f,
		words:  make([]uint64, (len(f.names)+63)/64),
	}
	for _, name := range names {
		ordinal, ok := f.ordinals[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not part of family %q", ErrUnknownCapability, name, f.name)
		}
		set.words[ordinal/64] |= 1 << (uint(ordinal) % 64)
	}
	return set, nil
}

// ClaimCodec returns the codec that translates capability sets of this
// family to and from their wire form, an array of capability name strings
// in family order. Register it with the token manager under the claim name
// the application stores the set in.
func (f *CapabilityFamily) ClaimCodec() ClaimCodec {
	return ClaimCodec{
		ToJSON: func(value any) (json.RawMessage, error) {
			set, ok := value.(*CapabilitySet)
			if !ok {
				return nil, fmt.Errorf("%w: expected *CapabilitySet, got %T", ErrUnsupportedClaimValue, value)
			}
			if set.family != f {
				return nil, fmt.Errorf("%w: set belongs to family %q, codec belongs to %q", ErrConfiguration, set.family.name, f.name)
			}
			return json.Marshal(set.Names())
		},
		FromJSON: func(raw json.RawMessage) (any, error) {
			var names []string
			if err := json.Unmarshal(raw, &names); err != nil {
				return nil, err
			}
			return f.NewSet(names...)
		},
	}
}

// CapabilitySet is a subset of one family's capabilities, stored as a
// fixed-width bitset of the family's ordinals. Sets are immutable.
type CapabilitySet struct {
	family *CapabilityFamily
	words  []uint64
}

// Family returns the family the set is defined over.
func (s *CapabilitySet) Family() *CapabilityFamily {
	return s.family
}

// Has reports whether the named capability is in the set. Names outside the
// family are simply absent.
func (s *CapabilitySet) Has(name string) bool {
	ordinal, ok := s.family.ordinals[name]
	if !ok {
		return false
	}
	return s.words[ordinal/64]&(1<<(uint(ordinal)%64)) != 0
}

// ContainsAll reports whether every capability of required is present,
// word-wise: (this AND required) == required. The empty set is contained in
// every set. Sets over different families never contain one another.
func (s *CapabilitySet) ContainsAll(required *CapabilitySet) bool {
	if required == nil {
		return true
	}
	if required.family != s.family {
		return false
	}
	for i, word := range required.words {
		if s.words[i]&word != word {
			return false
		}
	}
	return true
}

// Names returns the capability names present in the set, in family order.
func (s *CapabilitySet) Names() []string {
	names := make([]string, 0)
	for ordinal, name := range s.family.names {
		if s.words[ordinal/64]&(1<<(uint(ordinal)%64)) != 0 {
			names = append(names, name)
		}
	}
	return names
}
