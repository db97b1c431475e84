package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrParse = errors.New("unparseable legacy key")

// LegacyKey is the structured form of a legacy document key
// "{unixMillis}_{formType}_{contactId}".
type LegacyKey struct {
	Timestamp time.Time
	FormType  string
	ContactID string
}

// String rebuilds the key.
func (k LegacyKey) String() string {
	return fmt.Sprintf("%d_%s_%s", k.Timestamp.UnixMilli(), k.FormType, k.ContactID)
}

// ParseLegacyKey splits key at its first and last underscore. The form type
// sits between them and may itself contain spaces or underscores, so a
// contact id with an underscore ends up partly in FormType. Callers that know
// the discriminators re-split it (see migration.SplitKeyFormType).
func ParseLegacyKey(key string) (LegacyKey, error) {
	first := strings.IndexByte(key, '_')
	last := strings.LastIndexByte(key, '_')
	if first <= 0 || last <= first+1 || last == len(key)-1 {
		return LegacyKey{}, fmt.Errorf("%w: %q", ErrParse, key)
	}

	ts := key[:first]
	for _, r := range ts {
		if r < '0' || r > '9' {
			return LegacyKey{}, fmt.Errorf("%w: %q: timestamp is not numeric", ErrParse, key)
		}
	}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return LegacyKey{}, fmt.Errorf("%w: %q: %v", ErrParse, key, err)
	}

	formType := strings.TrimSpace(key[first+1 : last])
	if formType == "" {
		return LegacyKey{}, fmt.Errorf("%w: %q: empty form type", ErrParse, key)
	}
	return LegacyKey{
		Timestamp: time.UnixMilli(ms).UTC(),
		FormType:  formType,
		ContactID: key[last+1:],
	}, nil
}
