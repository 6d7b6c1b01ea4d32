// Package itemkinds is the per-kind field schema registry for item
// metadata. Kinds without a schema accept no metadata fields.
package itemkinds

import (
	"fmt"
	"sort"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
)

// Field describes one metadata field of a kind. Secret fields are stored
// inside the encrypted payload instead of plain metadata.
type Field struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Secret bool   `json:"secret,omitempty"`
}

// Schema is the field layout for a kind.
type Schema struct {
	Kind   string  `json:"kind"`
	Fields []Field `json:"fields"`
}

func (s Schema) field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Registry maps kinds to schemas. The zero value is empty; use Default.
type Registry struct {
	schemas map[string]Schema
}

func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{schemas: make(map[string]Schema, len(schemas))}
	for _, s := range schemas {
		r.schemas[s.Kind] = s
	}
	return r
}

// Known reports whether kind is registered.
func (r *Registry) Known(kind string) bool {
	_, ok := r.schemas[kind]
	return ok
}

// Lookup returns the schema for kind.
func (r *Registry) Lookup(kind string) (Schema, error) {
	s, ok := r.schemas[kind]
	if !ok {
		return Schema{}, fmt.Errorf("%w: unknown item kind %q", common.ErrNotFound, kind)
	}
	return s, nil
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Split validates fields against the schema for kind and separates them
// into plain metadata and secret values.
func (r *Registry) Split(kind string, fields map[string]string) (plain, secret map[string]string, err error) {
	s, ok := r.schemas[kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown item kind %q", common.ErrValidation, kind)
	}
	plain = map[string]string{}
	secret = map[string]string{}
	for name, v := range fields {
		f, ok := s.field(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: field %q is not defined for kind %q", common.ErrValidation, name, kind)
		}
		if f.Secret {
			secret[name] = v
		} else {
			plain[name] = v
		}
	}
	return plain, secret, nil
}

// Default returns the built-in registry.
func Default() *Registry {
	return NewRegistry(
		Schema{Kind: "web_credential"},
		Schema{Kind: "api_key"},
		Schema{Kind: "social_login"},
		Schema{Kind: "certificate"},
		Schema{Kind: "secure_note"},
		Schema{Kind: "ad_token_google", Fields: []Field{
			{Name: "account_id", Label: "Google Ads Account ID"},
			{Name: "customer_id", Label: "Customer ID"},
			{Name: "mcc_id", Label: "MCC ID (if applicable)"},
			{Name: "conversion_tracking_id", Label: "Conversion Tracking ID"},
			{Name: "gtm_container_id", Label: "GTM Container ID"},
		}},
		Schema{Kind: "ad_token_meta", Fields: []Field{
			{Name: "business_manager_id", Label: "Business Manager ID"},
			{Name: "ad_account_id", Label: "Ad Account ID"},
			{Name: "pixel_id", Label: "Facebook Pixel ID"},
			{Name: "app_id", Label: "App ID"},
			{Name: "app_secret", Label: "App Secret", Secret: true},
		}},
		Schema{Kind: "ad_token_tiktok", Fields: []Field{
			{Name: "advertiser_id", Label: "Advertiser ID"},
			{Name: "pixel_id", Label: "TikTok Pixel ID"},
			{Name: "app_id", Label: "App ID"},
		}},
		Schema{Kind: "ad_token_linkedin", Fields: []Field{
			{Name: "account_id", Label: "LinkedIn Account ID"},
			{Name: "campaign_manager_account", Label: "Campaign Manager Account"},
			{Name: "insight_tag_id", Label: "Insight Tag ID"},
		}},
		Schema{Kind: "gtm", Fields: []Field{
			{Name: "container_id", Label: "GTM Container ID"},
			{Name: "account_id", Label: "Account ID"},
			{Name: "workspace", Label: "Workspace Name"},
		}},
		Schema{Kind: "integration_rd", Fields: []Field{
			{Name: "api_key", Label: "RD Station API Key", Secret: true},
			{Name: "client_id", Label: "Client ID"},
			{Name: "client_secret", Label: "Client Secret", Secret: true},
			{Name: "webhook_url", Label: "Webhook URL"},
		}},
		Schema{Kind: "integration_hubspot", Fields: []Field{
			{Name: "api_key", Label: "HubSpot API Key", Secret: true},
			{Name: "portal_id", Label: "Portal ID"},
			{Name: "app_id", Label: "App ID"},
		}},
		Schema{Kind: "integration_ekyte", Fields: []Field{
			{Name: "api_key", Label: "eKyte API Key", Secret: true},
			{Name: "client_id", Label: "Client ID"},
			{Name: "environment", Label: "Environment (prod/sandbox)"},
		}},
		Schema{Kind: "ssh_key", Fields: []Field{
			{Name: "hostname", Label: "Hostname/IP"},
			{Name: "port", Label: "Port"},
			{Name: "username", Label: "Username"},
			{Name: "private_key_path", Label: "Private Key Path"},
		}},
		Schema{Kind: "db_credential", Fields: []Field{
			{Name: "host", Label: "Host"},
			{Name: "port", Label: "Port"},
			{Name: "database", Label: "Database Name"},
			{Name: "username", Label: "Username"},
			{Name: "connection_string", Label: "Connection String", Secret: true},
		}},
	)
}
