package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"path"
	"strings"
	"time"
)

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// storageKey builds up/YYYY/MM/DD/<suffix>.<ext> from the UTC date of now.
func storageKey(now time.Time, ext string) (string, error) {
	suffix, err := randomSuffix(6)
	if err != nil {
		return "", err
	}
	name := suffix
	if ext != "" {
		name += "." + ext
	}
	return path.Join("up", now.UTC().Format("2006/01/02"), name), nil
}

func randomSuffix(n int) (string, error) {
	b := make([]byte, n)
	base := big.NewInt(int64(len(suffixAlphabet)))
	for i := range b {
		v, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("generate suffix: %w", err)
		}
		b[i] = suffixAlphabet[v.Int64()]
	}
	return string(b), nil
}

// extension returns the lower-cased last dot segment of filename,
// or the image subtype of contentType when the name has none.
func extension(filename, contentType string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if i := strings.LastIndexByte(base, '.'); i >= 0 && i < len(base)-1 {
		return strings.ToLower(base[i+1:])
	}
	sub, ok := strings.CutPrefix(strings.ToLower(contentType), "image/")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(sub, ";+ "); i >= 0 {
		sub = sub[:i]
	}
	if sub == "jpeg" {
		return "jpg"
	}
	return sub
}

func isImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

func (s *imageService) publicURL(key string) string {
	return s.opts.PublicScheme + "://" + s.opts.PublicDomain + "/" + strings.TrimPrefix(key, "/")
}

// keyFromURL strips scheme, host and query from a stored public URL.
func keyFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("url %q has no object path", raw)
	}
	return key, nil
}
