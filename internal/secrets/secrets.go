// Package secrets abstracts where key material comes from: plain files on
// disk, or a Vault KV mount when VAULT_ADDR/VAULT_TOKEN are configured.
package secrets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"
)

// Source resolves a configured reference (a filesystem path, or a Vault
// secret path) to raw key material. Error strings from implementations must
// not echo the reference: it may point at secret-adjacent locations.
type Source interface {
	Read(ref string) ([]byte, error)
}

// FileSource reads key material from the filesystem.
type FileSource struct{}

func (FileSource) Read(ref string) ([]byte, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, errors.New("secret reference not set")
	}
	b, err := os.ReadFile(ref)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("secret file not found at the configured path")
		}
		// Covers "file name too long" when the path is actually key content.
		return nil, errors.New("secret reference is not a readable file path")
	}
	return b, nil
}

// VaultSource reads key material from a Vault KV mount. The referenced secret
// is expected to hold the material under a "material" key, base64 or plain.
type VaultSource struct {
	client *vaultapi.Client
	mount  string
	isKVv2 bool
}

func NewVaultSource(addr, token string) (*VaultSource, error) {
	if addr == "" || token == "" {
		return nil, errors.New("vault source requires VAULT_ADDR and VAULT_TOKEN")
	}
	cfg := vaultapi.DefaultConfig()
	cfg.Address = addr
	c, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	c.SetToken(token)
	return &VaultSource{client: c, mount: "secret", isKVv2: true}, nil
}

func (v *VaultSource) Read(ref string) ([]byte, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, errors.New("secret reference not set")
	}
	ref = strings.TrimPrefix(ref, "/")

	data, err := v.read(ref)
	if err != nil {
		return nil, err
	}
	raw, ok := data["material"].(string)
	if !ok || raw == "" {
		return nil, errors.New("vault secret has no material field")
	}
	if dec, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return dec, nil
	}
	return []byte(raw), nil
}

func (v *VaultSource) read(ref string) (map[string]any, error) {
	if v.isKVv2 {
		sec, err := v.client.Logical().Read(fmt.Sprintf("%s/data/%s", v.mount, ref))
		if err == nil && sec != nil {
			if inner, ok := sec.Data["data"].(map[string]any); ok {
				return inner, nil
			}
		}
		if err != nil {
			// fallback to v1
			v.isKVv2 = false
		}
	}
	sec, err := v.client.Logical().Read(fmt.Sprintf("%s/%s", v.mount, ref))
	if err != nil {
		return nil, errors.New("vault read failed")
	}
	if sec == nil {
		return nil, errors.New("vault secret not found")
	}
	return sec.Data, nil
}

// ForConfig picks the Vault source when both vault settings are present,
// plain files otherwise.
func ForConfig(vaultAddr, vaultToken string) (Source, error) {
	if vaultAddr != "" && vaultToken != "" {
		return NewVaultSource(vaultAddr, vaultToken)
	}
	return FileSource{}, nil
}
