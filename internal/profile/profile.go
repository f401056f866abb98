// Package profile describes the two known Nubert device kinds. A profile is
// a static record of conversion rules selected once at connection time (from
// which control characteristic answered discovery) and held immutably for
// the session.
package profile

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/xuio/nubert-hass/internal/bledb"
)

// GATT identifiers of the Nubert control surface.
const (
	// AdvertisedServiceUUID is the service both device kinds advertise; used
	// as the discovery filter.
	AdvertisedServiceUUID = "0000a600-0000-1000-8000-00805f9b34fb"

	// ControlServiceUUID hosts the control characteristic.
	ControlServiceUUID = "8e2ceaaa-0e27-11e7-93ae-92361f002671"

	SpeakerCharUUID   = "8e2cece4-0e27-11e7-93ae-92361f002671"
	SubwooferCharUUID = "8e2cef1e-0e27-11e7-93ae-92361f002671"
)

// Kind identifies one of the two known device kinds.
type Kind int

const (
	KindSpeaker Kind = iota
	KindSubwoofer
)

func (k Kind) String() string {
	if k == KindSubwoofer {
		return "subwoofer"
	}
	return "speaker"
}

// Profile is the static description of a device kind: which characteristic
// to bind to, how raw volume bytes map to dB, which source codes exist, and
// whether writes expect an acknowledged response.
type Profile struct {
	kind     Kind
	model    string
	charUUID string // normalized
	maxRaw   int    // highest legal raw volume byte
	dbOffset int    // dB = raw - dbOffset
	ackWrite bool
	sources  *orderedmap.OrderedMap[byte, string]
}

func newProfile(kind Kind, model, charUUID string, maxRaw, dbOffset int, ackWrite bool, sources []struct {
	code byte
	name string
}) *Profile {
	om := orderedmap.New[byte, string]()
	for _, s := range sources {
		om.Set(s.code, s.name)
	}
	return &Profile{
		kind:     kind,
		model:    model,
		charUUID: bledb.NormalizeUUID(charUUID),
		maxRaw:   maxRaw,
		dbOffset: dbOffset,
		ackWrite: ackWrite,
		sources:  om,
	}
}

// Speaker is the full-range nuPro profile: raw 0..100 maps to -100..0 dB,
// eight input sources, acknowledged writes.
var Speaker = newProfile(KindSpeaker, "nuPro speaker", SpeakerCharUUID, 100, 100, true,
	[]struct {
		code byte
		name string
	}{
		{0x00, "AUX"},
		{0x02, "XLR"},
		{0x04, "COAX 1"},
		{0x05, "COAX 2"},
		{0x06, "OPTO 1"},
		{0x07, "OPTO 2"},
		{0x08, "USB"},
		{0x09, "PORT"},
	})

// Subwoofer is the nuSub profile: raw 0..21 maps to -15..+6 dB, two input
// sources, writes without response (the subwoofer never acknowledges).
var Subwoofer = newProfile(KindSubwoofer, "nuSub subwoofer", SubwooferCharUUID, 21, 15, false,
	[]struct {
		code byte
		name string
	}{
		{0x00, "AUX"},
		{0x02, "WIRELESS"},
	})

// ByCharacteristic resolves the profile from the characteristic UUID that
// answered discovery. The UUID may be in any format accepted by
// bledb.NormalizeUUID.
func ByCharacteristic(uuid string) (*Profile, bool) {
	switch bledb.NormalizeUUID(uuid) {
	case Speaker.charUUID:
		return Speaker, true
	case Subwoofer.charUUID:
		return Subwoofer, true
	default:
		return nil, false
	}
}

// CharacteristicUUIDs lists the control characteristic UUIDs of all known
// profiles, in discovery preference order (speaker first).
func CharacteristicUUIDs() []string {
	return []string{Speaker.charUUID, Subwoofer.charUUID}
}

// Kind returns the device kind this profile describes.
func (p *Profile) Kind() Kind { return p.kind }

// Model returns a human-readable model name.
func (p *Profile) Model() string { return p.model }

// CharacteristicUUID returns the normalized control characteristic UUID.
func (p *Profile) CharacteristicUUID() string { return p.charUUID }

// AckRequired reports whether writes expect an acknowledged response.
func (p *Profile) AckRequired() bool { return p.ackWrite }

// MinDb and MaxDb bound the legal volume range in dB.
func (p *Profile) MinDb() int { return -p.dbOffset }
func (p *Profile) MaxDb() int { return p.maxRaw - p.dbOffset }

// MaxRaw returns the highest legal raw volume byte.
func (p *Profile) MaxRaw() int { return p.maxRaw }

// VolumeFromRaw converts a device-reported raw volume byte to dB. Raw
// values above the profile maximum clamp to the maximum before the offset
// is subtracted.
func (p *Profile) VolumeFromRaw(raw byte) int {
	r := int(raw)
	if r > p.maxRaw {
		r = p.maxRaw
	}
	return r - p.dbOffset
}

// RawFromVolume converts a requested dB value to the raw byte to transmit,
// clamping into the profile's legal range first.
func (p *Profile) RawFromVolume(db int) byte {
	if db < p.MinDb() {
		db = p.MinDb()
	}
	if db > p.MaxDb() {
		db = p.MaxDb()
	}
	return byte(db + p.dbOffset)
}

// ClampDb clamps a dB value into the profile's legal range.
func (p *Profile) ClampDb(db int) int {
	if db < p.MinDb() {
		return p.MinDb()
	}
	if db > p.MaxDb() {
		return p.MaxDb()
	}
	return db
}

// SourceName resolves a source code to its display name.
func (p *Profile) SourceName(code byte) (string, bool) {
	return p.sources.Get(code)
}

// SourceCode resolves a display name to its source code. Matching is
// case-insensitive and ignores spaces, dashes and underscores, so "aux",
// "COAX1" and "coax-1" all resolve.
func (p *Profile) SourceCode(name string) (byte, bool) {
	want := foldSourceName(name)
	for pair := p.sources.Oldest(); pair != nil; pair = pair.Next() {
		if foldSourceName(pair.Value) == want {
			return pair.Key, true
		}
	}
	return 0, false
}

// SourceNames lists all source display names in table order.
func (p *Profile) SourceNames() []string {
	names := make([]string, 0, p.sources.Len())
	for pair := p.sources.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Value)
	}
	return names
}

// foldSourceName lowers case and strips separator characters for matching.
func foldSourceName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch r {
		case ' ', '-', '_':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
