package storage

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// fallbackStem stands in for names that clean down to nothing.
const fallbackStem = "_"

// CleanName reduces a client supplied filename to a safe flat name:
// ASCII only, no directory component, whitespace collapsed to "_", and
// only [A-Za-z0-9._-] kept. A name whose stem cleans away entirely keeps
// its extension behind a "_" stem.
func CleanName(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = path.Base(filename)

	var b strings.Builder
	pendingSpace := false
	for _, r := range norm.NFKD.String(filename) {
		switch {
		case r > unicode.MaxASCII:
			continue
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		case r == '.' || r == '_' || r == '-' ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'):
			if pendingSpace {
				b.WriteByte('_')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}

	raw := b.String()
	ext := strings.TrimRight(path.Ext(raw), "._")
	if len(ext) > 1 && strings.Trim(strings.TrimSuffix(raw, path.Ext(raw)), "._") == "" {
		// Keep the extension when only the stem was lost.
		return fallbackStem + ext
	}
	cleaned := strings.Trim(raw, "._")
	if cleaned == "" {
		return fallbackStem
	}
	return cleaned
}

// splitName splits name at its last extension. ".png" has an empty stem.
func splitName(name string) (stem, ext string) {
	ext = path.Ext(name)
	stem = strings.TrimSuffix(name, ext)
	if stem == "" {
		stem = fallbackStem
	}
	return stem, ext
}

// AvailableName cleans desired and returns the first name not present in
// b. Candidates are desired itself, then stem_1.ext, stem_2.ext, ... in
// increasing order, so the result is deterministic for a given backend
// state.
//
// The existence probe and a later Save are not atomic together: two
// writers resolving the same name can race. Backends whose Save performs
// an atomic create-if-absent report the loser with ErrNameCollision.
func AvailableName(ctx context.Context, b Backend, desired string) (string, error) {
	name := CleanName(desired)
	taken, err := b.Exists(ctx, name)
	if err != nil {
		return "", fmt.Errorf("probe %s: %w", name, err)
	}
	if !taken {
		return name, nil
	}

	stem, ext := splitName(name)
	for counter := 1; ; counter++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := stem + "_" + strconv.Itoa(counter) + ext
		taken, err := b.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
}

// validName reports whether name is a single flat path element.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
