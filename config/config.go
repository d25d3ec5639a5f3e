package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ashu01304/nostr-forms-sub000/relay"
)

// DefaultRelays are used when the local state names no relays of its own.
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
	"wss://relay.nostr.band",
	"wss://nostr21.com",
}

// FormKeys are the cached access keys for one form. Either key may be
// empty; an empty key simply means that level of access is unavailable and
// encrypted content rejects softly downstream.
type FormKeys struct {
	Owner  string `yaml:"owner"`
	FormID string `yaml:"formId"`
	// ViewKey decrypts the form specification, EditKey the responses. Both
	// are hex-encoded 32-byte secrets.
	ViewKey string `yaml:"viewKey,omitempty"`
	EditKey string `yaml:"editKey,omitempty"`
}

// EditSecret decodes the edit key to raw bytes, nil when absent.
func (k FormKeys) EditSecret() ([]byte, error) { return decodeKey(k.EditKey) }

// ViewSecret decodes the view key to raw bytes, nil when absent.
func (k FormKeys) ViewSecret() ([]byte, error) { return decodeKey(k.ViewKey) }

func decodeKey(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("config: key is not hex: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("config: key must be 32 bytes, got %d", len(b))
	}
	return b, nil
}

// State is the locally persisted state consumed by the core.
type State struct {
	Relays []relay.Item `yaml:"relays"`
	Forms  []FormKeys   `yaml:"forms"`
}

// Load reads state from a YAML file. A missing file is not an error: it
// yields the zero state, which falls back to DefaultRelays.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	for i := range st.Relays {
		if st.Relays[i].LocalID == "" {
			st.Relays[i] = relay.NewItem(st.Relays[i].URL)
		}
	}
	return &st, nil
}

// RelayURLs returns the configured relay endpoints, DefaultRelays when none
// are configured.
func (s *State) RelayURLs() []string {
	if len(s.Relays) == 0 {
		return append([]string(nil), DefaultRelays...)
	}
	urls := make([]string, 0, len(s.Relays))
	for _, item := range s.Relays {
		urls = append(urls, item.URL)
	}
	return urls
}

// KeysFor returns the cached keys for a form, false when none are cached.
func (s *State) KeysFor(owner, formID string) (FormKeys, bool) {
	for _, k := range s.Forms {
		if k.Owner == owner && k.FormID == formID {
			return k, true
		}
	}
	return FormKeys{}, false
}
