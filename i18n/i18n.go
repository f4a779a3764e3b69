// Package i18n supplies user-facing message text for reqkit.
//
// Messages are addressed by "<namespace>.<key>" (for example
// "network.unauthorized") and loaded from YAML bundles laid out as
// lang/<locale>/<namespace>.yaml. Lookups that miss the active language fall
// back to the catalog's fallback language, then to the key itself.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// DefaultFallback is the language used when no better match exists.
const DefaultFallback = "zh"

//go:embed lang/*/*.yaml
var bundled embed.FS

// Translator resolves a message key to display text.
type Translator interface {
	T(key string) string
}

// TranslatorFunc adapts a plain function to Translator.
type TranslatorFunc func(key string) string

// T implements Translator.
func (f TranslatorFunc) T(key string) string { return f(key) }

// Catalog is a Translator backed by an x/text message catalog. It is safe for
// concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	builder    *catalog.Builder
	fallback   language.Tag
	current    language.Tag
	locales    map[language.Tag]string
	namespaces map[string]struct{}
	printers   map[language.Tag]*message.Printer
}

// New returns an empty catalog whose fallback and active language is fallback.
func New(fallback string) *Catalog {
	tag := language.Make(fallback)
	return &Catalog{
		builder:    catalog.NewBuilder(catalog.Fallback(tag)),
		fallback:   tag,
		current:    tag,
		locales:    make(map[language.Tag]string),
		namespaces: make(map[string]struct{}),
		printers:   make(map[language.Tag]*message.Printer),
	}
}

// NewDefault returns a catalog preloaded with the bundled network and common
// messages in Chinese and English.
func NewDefault() (*Catalog, error) {
	c := New(DefaultFallback)
	if err := c.Load(bundled, "lang"); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads every <root>/<locale>/<namespace>.yaml file from fsys.
func (c *Catalog) Load(fsys fs.FS, root string) error {
	files, err := fs.Glob(fsys, path.Join(root, "*", "*.yaml"))
	if err != nil {
		return fmt.Errorf("glob resources: %w", err)
	}
	for _, file := range files {
		locale := path.Base(path.Dir(file))
		namespace := strings.TrimSuffix(path.Base(file), path.Ext(file))

		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		var resource map[string]string
		if err := yaml.Unmarshal(data, &resource); err != nil {
			return fmt.Errorf("parse %s: %w", file, err)
		}
		if err := c.AddResourceBundle(locale, namespace, resource); err != nil {
			return err
		}
	}
	return nil
}

// AddResourceBundle merges resource into locale under namespace, overwriting
// existing keys.
func (c *Catalog) AddResourceBundle(locale, namespace string, resource map[string]string) error {
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("invalid locale %q: %w", locale, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, text := range resource {
		// Texts are stored as format strings; T renders them without arguments.
		if err := c.builder.SetString(tag, namespace+"."+key, strings.ReplaceAll(text, "%", "%%")); err != nil {
			return fmt.Errorf("set %s.%s for %s: %w", namespace, key, locale, err)
		}
	}
	c.locales[tag] = locale
	c.namespaces[namespace] = struct{}{}
	c.printers = make(map[language.Tag]*message.Printer)
	return nil
}

// SetLanguage switches the active language to the closest loaded locale.
// Unknown languages select the fallback.
func (c *Catalog) SetLanguage(lang string) error {
	requested, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("invalid language %q: %w", lang, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	supported := c.supportedLocked()
	_, idx, conf := language.NewMatcher(supported).Match(requested)
	if conf == language.No {
		c.current = c.fallback
		return nil
	}
	c.current = supported[idx]
	return nil
}

// Language returns the active language as a BCP 47 string.
func (c *Catalog) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.String()
}

// T resolves key in the active language.
func (c *Catalog) T(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if text := c.printerLocked(c.current).Sprintf(key); text != key {
		return text
	}
	if c.current != c.fallback {
		return c.printerLocked(c.fallback).Sprintf(key)
	}
	return key
}

// Locales lists the loaded locale names, sorted.
func (c *Catalog) Locales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.locales))
	for _, name := range c.locales {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Namespaces lists the loaded namespaces, sorted.
func (c *Catalog) Namespaces() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.namespaces))
	for ns := range c.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// supportedLocked lists loaded tags with the fallback first so the matcher
// defaults to it.
func (c *Catalog) supportedLocked() []language.Tag {
	tags := []language.Tag{c.fallback}
	for tag := range c.locales {
		if tag != c.fallback {
			tags = append(tags, tag)
		}
	}
	sort.Slice(tags[1:], func(i, j int) bool {
		return tags[i+1].String() < tags[j+1].String()
	})
	return tags
}

func (c *Catalog) printerLocked(tag language.Tag) *message.Printer {
	p, ok := c.printers[tag]
	if !ok {
		p = message.NewPrinter(tag, message.Catalog(c.builder))
		c.printers[tag] = p
	}
	return p
}
