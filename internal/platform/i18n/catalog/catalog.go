// Package catalog loads the embedded YAML message catalogs and resolves
// request locales against them.
//
// Catalog files live at locales/<locale>/<namespace>.yaml. Keys are unique
// per locale across namespaces; the "errors" namespace is keyed by error code.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	xcatalog "golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

const (
	// BaseLocale is the canonical source locale for catalogs.
	BaseLocale = "en-US"

	// NamespaceErrors holds user-facing error templates keyed by code.
	NamespaceErrors = "errors"
	// NamespaceNotices holds notices, prompts and flavor labels.
	NamespaceNotices = "notices"
)

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// locale holds every namespace of one locale plus a flat key index.
type locale struct {
	tag        language.Tag
	namespaces map[string]map[string]string
	keys       map[string]string
}

// Bundle is an immutable set of locale catalogs with its own x/text message
// catalog, so printers never touch process-wide state.
type Bundle struct {
	locales  map[string]*locale
	order    []string
	matcher  language.Matcher
	messages *xcatalog.Builder
}

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

var defaultBundle = mustLoadEmbedded()

// Default returns the process-wide embedded catalog bundle.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads catalog files embedded in this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedCatalogFS)
}

// LoadFromFS loads every locales/*/*.yaml file of catalogFS.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	slices.Sort(paths)

	b := &Bundle{locales: map[string]*locale{}}
	for _, p := range paths {
		data, err := fs.ReadFile(catalogFS, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := checkFile(p, file); err != nil {
			return nil, err
		}
		if err := b.add(p, file); err != nil {
			return nil, err
		}
	}
	if _, ok := b.locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	if err := b.build(); err != nil {
		return nil, err
	}
	return b, nil
}

// checkFile requires the declared locale and namespace to match the path.
func checkFile(p string, file catalogFile) error {
	wantLocale := path.Base(path.Dir(p))
	wantNamespace := strings.TrimSuffix(path.Base(p), path.Ext(p))
	switch got := strings.TrimSpace(file.Locale); {
	case got == "":
		return fmt.Errorf("catalog %s: locale is required", p)
	case got != wantLocale:
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", p, got, wantLocale)
	}
	switch got := strings.TrimSpace(file.Namespace); {
	case got == "":
		return fmt.Errorf("catalog %s: namespace is required", p)
	case got != wantNamespace:
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", p, got, wantNamespace)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("catalog %s: messages map is required", p)
	}
	return nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	name := strings.TrimSpace(file.Locale)
	namespace := strings.TrimSpace(file.Namespace)

	loc, ok := b.locales[name]
	if !ok {
		tag, err := language.Parse(name)
		if err != nil {
			return fmt.Errorf("catalog %s: parse locale tag %q: %w", p, name, err)
		}
		loc = &locale{tag: tag, namespaces: map[string]map[string]string{}, keys: map[string]string{}}
		b.locales[name] = loc
	}
	if _, exists := loc.namespaces[namespace]; exists {
		return fmt.Errorf("catalog %s: namespace %q already defined for locale %q", p, namespace, name)
	}

	entries := make(map[string]string, len(file.Messages))
	for raw, value := range file.Messages {
		key := strings.TrimSpace(raw)
		switch {
		case key == "":
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		case namespace == NamespaceErrors && key != strings.ToUpper(key):
			return fmt.Errorf("catalog %s: error key %q must be an upper-case code", p, key)
		}
		if owner, exists := loc.keys[key]; exists {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q (already in %s)", p, key, name, owner)
		}
		loc.keys[key] = namespace
		entries[key] = value
	}
	loc.namespaces[namespace] = entries
	return nil
}

// build orders locales base-first, so unmatched requests resolve to the base
// locale, and registers every message under the full tag and its language.
func (b *Bundle) build() error {
	b.order = []string{BaseLocale}
	for _, name := range slices.Sorted(maps.Keys(b.locales)) {
		if name != BaseLocale {
			b.order = append(b.order, name)
		}
	}

	tags := make([]language.Tag, len(b.order))
	b.messages = xcatalog.NewBuilder(xcatalog.Fallback(b.locales[BaseLocale].tag))
	for i, name := range b.order {
		loc := b.locales[name]
		tags[i] = loc.tag
		register := []language.Tag{loc.tag}
		if base, conf := loc.tag.Base(); conf != language.No {
			if baseTag := language.Make(base.String()); baseTag.String() != loc.tag.String() {
				register = append(register, baseTag)
			}
		}
		for _, entries := range loc.namespaces {
			for key, value := range entries {
				for _, tag := range register {
					if err := b.messages.SetString(tag, key, value); err != nil {
						return fmt.Errorf("register %s/%s: %w", name, key, err)
					}
				}
			}
		}
	}
	b.matcher = language.NewMatcher(tags)
	return nil
}

// Match resolves a locale or Accept-Language style preference list to the
// closest available locale, falling back to BaseLocale.
func (b *Bundle) Match(preference string) string {
	if b == nil || b.matcher == nil {
		return BaseLocale
	}
	trimmed := strings.TrimSpace(preference)
	if trimmed == "" {
		return BaseLocale
	}
	if _, ok := b.locales[trimmed]; ok {
		return trimmed
	}
	tags, _, err := language.ParseAcceptLanguage(trimmed)
	if err != nil || len(tags) == 0 {
		return BaseLocale
	}
	_, index, confidence := b.matcher.Match(tags...)
	if confidence == language.No {
		return BaseLocale
	}
	return b.order[index]
}

// Sprintf formats the message registered under key for the matched locale
// with locale-aware number formatting. Unknown keys render the key itself.
func (b *Bundle) Sprintf(preference, key string, args ...any) string {
	loc := b.locales[b.Match(preference)]
	return message.NewPrinter(loc.tag, message.Catalog(b.messages)).Sprintf(key, args...)
}

// HasLocale reports whether the locale exists in this bundle.
func (b *Bundle) HasLocale(name string) bool {
	if b == nil {
		return false
	}
	_, ok := b.locales[strings.TrimSpace(name)]
	return ok
}

// Locales returns all available locale identifiers.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(b.locales))
}

// NamespaceMessages returns a copy of one namespace of an exact locale.
func (b *Bundle) NamespaceMessages(name, namespace string) map[string]string {
	if b == nil {
		return map[string]string{}
	}
	loc, ok := b.locales[strings.TrimSpace(name)]
	if !ok {
		return map[string]string{}
	}
	return maps.Clone(loc.namespaces[strings.TrimSpace(namespace)])
}

// NamespaceMessagesWithFallback returns the namespace of the matched locale,
// or the base locale when the match lacks it, plus the locale that served it.
func (b *Bundle) NamespaceMessagesWithFallback(preference, namespace string) (string, map[string]string) {
	matched := b.Match(preference)
	if messages := b.NamespaceMessages(matched, namespace); len(messages) > 0 {
		return matched, messages
	}
	return BaseLocale, b.NamespaceMessages(BaseLocale, namespace)
}

func mustLoadEmbedded() *Bundle {
	bundle, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	return bundle
}
