// Package localization negotiates request languages against the languages a
// manifest offers and renders template data into resolved strings.
package localization

import (
	"context"
	"slices"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

type contextKey string

func (c contextKey) String() string {
	return "cascade/localization/" + string(c)
}

const ctxKeyLanguage = contextKey("languageKey")

// ToContext adds language preferences to the current supplied context.
func ToContext(ctx context.Context, lang []string) context.Context {
	return context.WithValue(ctx, ctxKeyLanguage, lang)
}

// FromContext extracts language preferences from the supplied context if any exist.
func FromContext(ctx context.Context) []string {
	languages, ok := ctx.Value(ctxKeyLanguage).([]string)
	if !ok {
		return nil
	}

	return languages
}

// ParseAcceptLanguage lists the languages of an Accept-Language value by
// descending quality, dropping malformed entries.
func ParseAcceptLanguage(accept string) []string {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		return nil
	}

	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil {
		// fall back to the raw entries without quality values
		var out []string
		for _, part := range strings.Split(accept, ",") {
			code, _, _ := strings.Cut(strings.TrimSpace(part), ";")
			if code != "" {
				out = append(out, code)
			}
		}
		return out
	}

	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tag.String())
	}
	return out
}

// FromLocale turns POSIX locale values such as LANG=en_GB.UTF-8 into
// language codes, skipping empty ones and the C and POSIX locales.
func FromLocale(locales ...string) []string {
	var out []string
	for _, locale := range locales {
		code, _, _ := strings.Cut(locale, ".")
		code, _, _ = strings.Cut(code, "@")
		code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
		if code == "" || code == "C" || code == "POSIX" {
			continue
		}
		if !slices.Contains(out, code) {
			out = append(out, code)
		}
	}
	return out
}

// Negotiate picks the entry of available that best serves the accepted
// languages. Exact codes win; otherwise the closest match by language
// distance is used. It returns "" when available is empty and available[0]
// when nothing matches.
func Negotiate(available []string, accept ...string) string {
	if len(available) == 0 {
		return ""
	}

	for _, want := range accept {
		if slices.Contains(available, want) {
			return want
		}
	}

	supported := make([]language.Tag, 0, len(available))
	index := make([]int, 0, len(available))
	for i, code := range available {
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		supported = append(supported, tag)
		index = append(index, i)
	}
	if len(supported) == 0 {
		return available[0]
	}

	desired := make([]language.Tag, 0, len(accept))
	for _, want := range accept {
		tag, err := language.Parse(want)
		if err != nil {
			continue
		}
		desired = append(desired, tag)
	}
	if len(desired) == 0 {
		return available[0]
	}

	_, i, confidence := language.NewMatcher(supported).Match(desired...)
	if confidence == language.No {
		return available[0]
	}
	return available[index[i]]
}

// Render executes text as a message template with data. Text without
// template actions is returned unchanged.
func Render(lang, id, text string, data map[string]any) (string, error) {
	if len(data) == 0 || !strings.Contains(text, "{{") {
		return text, nil
	}

	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}

	bundle := i18n.NewBundle(tag)
	if err = bundle.AddMessages(tag, &i18n.Message{ID: id, Other: text}); err != nil {
		return text, err
	}

	return i18n.NewLocalizer(bundle, tag.String()).Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
}
