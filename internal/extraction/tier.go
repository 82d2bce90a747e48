package extraction

// Tier is one strategy for deriving a field value from free OCR text.
// Lookup returns false when the tier cannot produce the field.
type Tier interface {
	Name() string
	Lookup(field, text string) (any, bool)
}

// Resolve walks the tiers in order and returns the first non-weak value
// along with the name of the tier that produced it.
func Resolve(tiers []Tier, field, text string) (any, string, bool) {
	for _, t := range tiers {
		v, ok := t.Lookup(field, text)
		if !ok || IsWeakField(field, v) {
			continue
		}
		return v, t.Name(), true
	}
	return nil, "", false
}
