package wallet

// GenericLabel is used when no known provider is detected.
const GenericLabel = "Stacks Wallet"

// Detector guesses the wallet brand. It is best effort and must never fail.
type Detector interface {
	Label() string
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func() string

func (f DetectorFunc) Label() string { return f() }

// Probe maps a capability marker exposed by a provider to its brand label.
type Probe struct {
	Marker string
	Label  string
}

// KnownProbes lists the providers recognized by default, in priority order.
var KnownProbes = []Probe{
	{Marker: "LeatherProvider", Label: "Leather"},
	{Marker: "XverseProviders", Label: "Xverse"},
}

// CapabilityDetector matches the markers reported by the client environment
// against a probe list.
type CapabilityDetector struct {
	Probes  []Probe
	Markers func() []string
}

// NewCapabilityDetector uses KnownProbes over markers.
func NewCapabilityDetector(markers func() []string) *CapabilityDetector {
	return &CapabilityDetector{Probes: KnownProbes, Markers: markers}
}

// Label returns the first matching probe's label, or GenericLabel.
func (d *CapabilityDetector) Label() string {
	if d == nil || d.Markers == nil {
		return GenericLabel
	}
	present := make(map[string]bool)
	for _, m := range d.Markers() {
		present[m] = true
	}
	for _, p := range d.Probes {
		if present[p.Marker] {
			return p.Label
		}
	}
	return GenericLabel
}

// safeLabel runs d and degrades to GenericLabel on a nil detector, an
// empty answer, or a panic.
func safeLabel(d Detector) (label string) {
	defer func() {
		if recover() != nil {
			label = GenericLabel
		}
	}()
	if d == nil {
		return GenericLabel
	}
	if l := d.Label(); l != "" {
		return l
	}
	return GenericLabel
}
