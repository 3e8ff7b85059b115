package catalog

import (
	"encoding/json"
	"fmt"

	jsonpatch "gopkg.in/evanphx/json-patch.v4"
)

// Diff returns the JSON merge patch (RFC 7386) that turns before into
// after. An empty object means there is nothing to send.
func Diff(before, after any) ([]byte, error) {
	a, err := json.Marshal(before)
	if err != nil {
		return nil, fmt.Errorf("marshal original: %w", err)
	}
	b, err := json.Marshal(after)
	if err != nil {
		return nil, fmt.Errorf("marshal modified: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch(a, b)
	if err != nil {
		return nil, fmt.Errorf("create merge patch: %w", err)
	}
	return patch, nil
}

// Apply merges patch into the JSON form of doc and decodes the result into
// out.
func Apply(doc any, patch []byte, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	merged, err := jsonpatch.MergePatch(raw, patch)
	if err != nil {
		return fmt.Errorf("apply merge patch: %w", err)
	}
	return json.Unmarshal(merged, out)
}

// EmptyPatch reports whether patch carries no changes.
func EmptyPatch(patch []byte) bool {
	return len(patch) == 0 || string(patch) == "{}"
}
