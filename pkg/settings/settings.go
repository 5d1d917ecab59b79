// Package settings resolves the flat site settings record into a typed
// structure where every field has an explicit default.
package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mchmarny/campusweb/pkg/menu"
	"gopkg.in/yaml.v3"
)

// Raw is the flat settings record as returned by the settings data source.
type Raw map[string]any

// Settings holds the site configuration consumed by the presentation layer.
type Settings struct {
	SiteName           string `json:"site_name" yaml:"site_name"`
	Tagline            string `json:"tagline" yaml:"tagline"`
	Phone              string `json:"phone" yaml:"phone"`
	Email              string `json:"email" yaml:"email"`
	Address            string `json:"address" yaml:"address"`
	WhatsAppNumber     string `json:"whatsapp_number" yaml:"whatsapp_number"`
	LogoURL            string `json:"logo_url" yaml:"logo_url"`
	FaviconURL         string `json:"favicon_url" yaml:"favicon_url"`
	FacebookURL        string `json:"facebook_url" yaml:"facebook_url"`
	InstagramURL       string `json:"instagram_url" yaml:"instagram_url"`
	YouTubeURL         string `json:"youtube_url" yaml:"youtube_url"`
	LinkedInURL        string `json:"linkedin_url" yaml:"linkedin_url"`
	MapEmbedURL        string `json:"map_embed_url" yaml:"map_embed_url"`
	AdmissionsOpen     bool   `json:"admissions_open" yaml:"admissions_open"`
	ShowPromoPopup     bool   `json:"show_promo_popup" yaml:"show_promo_popup"`
	ShowWhatsAppButton bool   `json:"show_whatsapp_button" yaml:"show_whatsapp_button"`
}

// Defaults returns the built-in value of every settings field.
func Defaults() Settings {
	return Settings{
		SiteName:           "College",
		Tagline:            "Learn. Lead. Succeed.",
		Phone:              "+91 00000 00000",
		Email:              "info@college.edu",
		Address:            "College Campus",
		WhatsAppNumber:     "",
		LogoURL:            "/images/logo.png",
		FaviconURL:         "/favicon.ico",
		FacebookURL:        "https://facebook.com",
		InstagramURL:       "https://instagram.com",
		YouTubeURL:         "https://youtube.com",
		LinkedInURL:        "https://linkedin.com",
		MapEmbedURL:        "",
		AdmissionsOpen:     true,
		ShowPromoPopup:     false,
		ShowWhatsAppButton: true,
	}
}

// LoadDefaults reads a YAML file whose keys override the built-in defaults.
// Keys missing from the file keep their built-in value.
func LoadDefaults(path string) (Settings, error) {
	d := Defaults()
	if path == "" {
		return d, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("failed to read settings defaults %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, &d); err != nil {
		return Defaults(), fmt.Errorf("failed to parse settings defaults %s: %w", path, err)
	}

	return d, nil
}

// Resolve fills a Settings from raw, using defaults for every key that is
// missing, null, blank, or cannot be read as the field's type.
func Resolve(raw Raw, defaults Settings) Settings {
	s := defaults

	str := func(key string, dst *string) {
		if v, ok := stringValue(raw[key]); ok {
			*dst = v
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := boolValue(raw[key]); ok {
			*dst = v
		}
	}

	str("site_name", &s.SiteName)
	str("tagline", &s.Tagline)
	str("phone", &s.Phone)
	str("email", &s.Email)
	str("address", &s.Address)
	str("whatsapp_number", &s.WhatsAppNumber)
	str("logo_url", &s.LogoURL)
	str("favicon_url", &s.FaviconURL)
	str("facebook_url", &s.FacebookURL)
	str("instagram_url", &s.InstagramURL)
	str("youtube_url", &s.YouTubeURL)
	str("linkedin_url", &s.LinkedInURL)
	str("map_embed_url", &s.MapEmbedURL)
	flag("admissions_open", &s.AdmissionsOpen)
	flag("show_promo_popup", &s.ShowPromoPopup)
	flag("show_whatsapp_button", &s.ShowWhatsAppButton)

	return s
}

func stringValue(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	default:
		return "", false
	}

	s = strings.TrimSpace(s)
	return s, s != ""
}

func boolValue(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	case string:
		if strings.TrimSpace(t) == "" {
			return false, false
		}
		b, err := menu.ParseFlag(t)
		return b, err == nil
	}
	return false, false
}
