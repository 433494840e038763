// Package signerconfig edits the Arbiter Signer's YAML configuration in place.
package signerconfig

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"arbiter-launcher/internal/domain"
)

var arbiterAddressLine = regexp.MustCompile(`escArbiterAddress: ".*"`)

// Patch replaces the first `escArbiterAddress: "..."` occurrence in the file
// at path with address. The rest of the file, including comments and
// formatting, is left byte-for-byte intact. The file mode is preserved.
// All failures wrap domain.ErrConfigPatchFailed.
func Patch(path, address string) error {
	info, err := os.Stat(path)
	if err != nil {
		return patchError(path, "stat", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return patchError(path, "read", err)
	}

	patched, err := Apply(data, address)
	if err != nil {
		return domain.NewSubSystemError("config", "signerconfig.Patch", domain.ErrConfigPatchFailed,
			fmt.Sprintf("%s: %v", path, err))
	}

	if err := os.WriteFile(path, patched, info.Mode().Perm()); err != nil {
		return patchError(path, "write", err)
	}
	return nil
}

// Apply returns content with the first escArbiterAddress line rewritten. It
// fails when the field is absent or the result no longer parses as YAML
// carrying the new address.
func Apply(content []byte, address string) ([]byte, error) {
	loc := arbiterAddressLine.FindIndex(content)
	if loc == nil {
		return nil, fmt.Errorf("escArbiterAddress field not found")
	}

	replacement := `escArbiterAddress: "` + address + `"`
	out := make([]byte, 0, len(content)-(loc[1]-loc[0])+len(replacement))
	out = append(out, content[:loc[0]]...)
	out = append(out, replacement...)
	out = append(out, content[loc[1]:]...)

	got, err := ReadAddress(out)
	if err != nil {
		return nil, fmt.Errorf("patched config is not valid YAML: %w", err)
	}
	if got != address {
		return nil, fmt.Errorf("patched config carries escArbiterAddress %q, want %q", got, address)
	}
	return out, nil
}

// ReadAddress returns the first escArbiterAddress value found anywhere in
// the YAML document.
func ReadAddress(content []byte) (string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return "", err
	}
	if v, ok := findKey(&root, "escArbiterAddress"); ok {
		return v, nil
	}
	return "", fmt.Errorf("escArbiterAddress field not found")
}

func findKey(n *yaml.Node, key string) (string, bool) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == key && n.Content[i+1].Kind == yaml.ScalarNode {
				return n.Content[i+1].Value, true
			}
		}
	}
	for _, c := range n.Content {
		if v, ok := findKey(c, key); ok {
			return v, true
		}
	}
	return "", false
}

func patchError(path, action string, err error) error {
	detail := strings.TrimSpace(fmt.Sprintf("%s %s: %v", action, path, err))
	return domain.NewSubSystemError("config", "signerconfig.Patch", domain.ErrConfigPatchFailed, detail)
}
