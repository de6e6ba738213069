package command

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/crmdesk-go/internal/core/domain"
	"github.com/yndnr/crmdesk-go/internal/core/gate"
	"github.com/yndnr/crmdesk-go/pkg/token"
)

// StatusView is the printable form of a session snapshot. The token
// itself is never shown.
type StatusView struct {
	Route            string `json:"route" yaml:"route"`
	Authenticated    bool   `json:"authenticated" yaml:"authenticated"`
	CustomerID       string `json:"cust_id,omitempty" yaml:"cust_id,omitempty"`
	CustomerUniqID   string `json:"cust_uniq_id,omitempty" yaml:"cust_uniq_id,omitempty"`
	ExpiresAt        string `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	TTL              string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	TokenFingerprint string `json:"token_fp,omitempty" yaml:"token_fp,omitempty" table:"wide"`
	LastError        string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	CheckedAt        string `json:"checked_at,omitempty" yaml:"checked_at,omitempty" table:"wide"`
}

// NewStatusView builds the view of s as of now.
func NewStatusView(s *domain.Session, now time.Time) StatusView {
	v := StatusView{Route: gate.Decide(s).String()}
	if s == nil {
		return v
	}

	v.Authenticated = s.IsAuthenticated
	v.CustomerID = s.Profile.SubjectID
	v.CustomerUniqID = s.Profile.SubjectUniqueID
	v.TokenFingerprint = token.Fingerprint(s.Token)
	v.LastError = s.LastError
	if !s.ExpiresAt.IsZero() {
		v.ExpiresAt = s.ExpiresAt.UTC().Format(time.RFC3339)
		v.TTL = s.TTL(now).Truncate(time.Second).String()
	}
	if !s.CheckedAt.IsZero() {
		v.CheckedAt = s.CheckedAt.UTC().Format(time.RFC3339)
	}
	return v
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the current session",
		Action: status,
	}
}

func status(c *cli.Context) error {
	rt, err := EnsureRuntime(c)
	if err != nil {
		return err
	}
	return render(c, NewStatusView(rt.Store.Snapshot(), time.Now()))
}

// RefreshCommand returns the refresh command.
func RefreshCommand() *cli.Command {
	return &cli.Command{
		Name:   "refresh",
		Usage:  "Re-read the persisted session and re-check its expiry",
		Action: refresh,
	}
}

func refresh(c *cli.Context) error {
	rt, err := EnsureRuntime(c)
	if err != nil {
		return err
	}
	s := rt.Store.RefreshAuth(c.Context)
	return render(c, NewStatusView(s, time.Now()))
}
