// Package fingerprint hashes an item together with the mapping that consumes it,
// so that either a content change or a mapping change marks the item as changed.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"FeedsImporter/internal/domain"
)

// Compute returns a hex digest over the item and the mapping rules.
func Compute(item domain.Item, rules []domain.MappingRule) string {
	sum := md5.New()
	sum.Write(encode(item))
	sum.Write(encode(rules))
	return hex.EncodeToString(sum.Sum(nil))
}

// encode serialises v with sorted map keys; values JSON cannot represent
// (channels, funcs, NaN) fall back to Go syntax so the hash stays defined.
func encode(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%#v", v))
	}
	return raw
}
