package venue

import (
	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/TradeGateHQ/tradegate/internal/pkg/apperrors"
)

// CredentialSet resolves which signing triple is active. The choice is
// made once at construction from the mode flag; call sites never branch
// on sandbox vs production again.
type CredentialSet struct {
	active  config.VenueCreds
	sandbox bool
}

func NewCredentialSet(cfg config.VenueConfig) (*CredentialSet, error) {
	active := cfg.Production
	if cfg.SandboxMode {
		active = cfg.Sandbox
	}
	if !active.Complete() {
		mode := "production"
		if cfg.SandboxMode {
			mode = "sandbox"
		}
		return nil, apperrors.New(apperrors.ErrConfiguration, "venue "+mode+" credentials are not configured", nil)
	}
	return &CredentialSet{active: active, sandbox: cfg.SandboxMode}, nil
}

// Active returns the (key, secret, passphrase) triple for the configured mode.
func (c *CredentialSet) Active() (key, secret, passphrase string) {
	return c.active.APIKey, c.active.APISecret, c.active.APIPassphrase
}

// Sandbox reports whether the set was built for sandbox mode.
func (c *CredentialSet) Sandbox() bool { return c.sandbox }
