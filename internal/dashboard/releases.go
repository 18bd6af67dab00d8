package dashboard

import (
	"cmp"
	"errors"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/Ilia01/b4dash/internal/models"
)

const releaseDescriptionLimit = 80

var (
	dottedVersionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)
	hexVersionPattern    = regexp.MustCompile(`0[xX]([0-9a-fA-F]+)`)
)

type ReleaseRecord struct {
	Name        string `json:"name"`
	Released    bool   `json:"released"`
	ReleaseDate string `json:"release_date"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type Releases struct {
	Firmware []ReleaseRecord `json:"firmware"`
	MCU      []ReleaseRecord `json:"mcu"`
}

// VersionKey orders release names. Unparseable names key to zero; numbers
// past uint64 saturate at math.MaxUint64 so they still sort last.
type VersionKey [3]uint64

func (k VersionKey) Compare(other VersionKey) int {
	for i := range k {
		if c := cmp.Compare(k[i], other[i]); c != 0 {
			return c
		}
	}
	return 0
}

// DottedVersionKey extracts the first major.minor.patch triple from name.
func DottedVersionKey(name string) VersionKey {
	m := dottedVersionPattern.FindStringSubmatch(name)
	if m == nil {
		return VersionKey{}
	}
	var key VersionKey
	for i := range key {
		key[i] = parseSaturated(m[i+1], 10)
	}
	return key
}

// HexVersion parses the first 0x-prefixed literal in name, or returns 0.
func HexVersion(name string) uint64 {
	m := hexVersionPattern.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	return parseSaturated(m[1], 16)
}

// parseSaturated parses digits already matched by a version pattern. On
// overflow ParseUint reports ErrRange alongside math.MaxUint64, which is kept.
func parseSaturated(digits string, base int) uint64 {
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	return n
}

func HexVersionKey(name string) VersionKey {
	return VersionKey{HexVersion(name)}
}

// ReleaseBucket describes one release table.
type ReleaseBucket struct {
	Name     string
	Keywords []string
	Key      func(name string) VersionKey
	Max      int
	// PadTo fixes the table's row count; zero disables padding.
	PadTo int
}

func (b ReleaseBucket) Matches(name string) bool {
	lowered := strings.ToLower(name)
	for _, kw := range b.Keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

var (
	MCUBucket = ReleaseBucket{
		Name:     "mcu",
		Keywords: []string{"mcu"},
		Key:      HexVersionKey,
		Max:      5,
	}
	FirmwareBucket = ReleaseBucket{
		Name:     "firmware",
		Keywords: []string{"b4", "beam4"},
		Key:      DottedVersionKey,
		Max:      11,
		PadTo:    11,
	}
)

// Classify assigns each non-archived version to the first bucket it matches.
// Versions matching no bucket are dropped.
func Classify(versions []models.JiraVersion, buckets ...ReleaseBucket) map[string][]models.JiraVersion {
	out := make(map[string][]models.JiraVersion, len(buckets))
	for _, v := range versions {
		if v.Archived {
			continue
		}
		for _, b := range buckets {
			if b.Matches(v.Name) {
				out[b.Name] = append(out[b.Name], v)
				break
			}
		}
	}
	return out
}

// Order sorts versions by the bucket key, highest first, and truncates to
// the bucket maximum. Equal keys keep their upstream order.
func (b ReleaseBucket) Order(versions []models.JiraVersion) []models.JiraVersion {
	sorted := slices.Clone(versions)
	slices.SortStableFunc(sorted, func(x, y models.JiraVersion) int {
		return b.Key(y.Name).Compare(b.Key(x.Name))
	})
	if b.Max > 0 && len(sorted) > b.Max {
		sorted = sorted[:b.Max]
	}
	return sorted
}

// PadReleases appends empty placeholder rows until records has target entries.
func PadReleases(records []ReleaseRecord, target int) []ReleaseRecord {
	for len(records) < target {
		records = append(records, ReleaseRecord{})
	}
	return records
}

func NewReleaseRecord(v models.JiraVersion, versionURL func(id string) string) ReleaseRecord {
	return ReleaseRecord{
		Name:        v.Name,
		Released:    v.Released,
		ReleaseDate: v.ReleaseDate,
		Description: truncate(v.Description, releaseDescriptionLimit),
		URL:         versionURL(v.ID),
	}
}

func (b ReleaseBucket) Records(versions []models.JiraVersion, versionURL func(id string) string) []ReleaseRecord {
	ordered := b.Order(versions)
	records := make([]ReleaseRecord, 0, max(len(ordered), b.PadTo))
	for _, v := range ordered {
		records = append(records, NewReleaseRecord(v, versionURL))
	}
	return PadReleases(records, b.PadTo)
}

// BuildReleases produces both release tables from the raw version list.
func BuildReleases(versions []models.JiraVersion, versionURL func(id string) string) Releases {
	buckets := Classify(versions, MCUBucket, FirmwareBucket)
	return Releases{
		Firmware: FirmwareBucket.Records(buckets[FirmwareBucket.Name], versionURL),
		MCU:      MCUBucket.Records(buckets[MCUBucket.Name], versionURL),
	}
}
