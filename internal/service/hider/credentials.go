package hider

import (
	"context"

	"github.com/avoss/projectwarden/internal/db"
	svcErr "github.com/avoss/projectwarden/internal/errors"
	"github.com/avoss/projectwarden/internal/marketplace"
)

// SaveCredential parses a pasted session blob, verifies it upstream, and
// stores it enabled. The profile ID and first name reported by the identity
// probe are stored alongside so later syncs do not depend on the probe.
//
// A blob the parser rejects is an invalid-argument error; a session the
// marketplace rejects is unauthenticated. Nothing is stored in either case.
func (s *Service) SaveCredential(ctx context.Context, userID, rawBlob, authorization string) (db.Credential, error) {
	if userID == "" {
		return db.Credential{}, svcErr.InvalidArgument("user id is required")
	}
	parsed, err := marketplace.ParseCredentialBlob(rawBlob)
	if err != nil {
		return db.Credential{}, svcErr.InvalidArgument(err.Error())
	}

	cred := db.Credential{
		UserID:        userID,
		SessionToken:  parsed.SessionToken,
		Authorization: authorization,
		Enabled:       true,
	}

	identity, err := s.clientFor(cred).Verify(ctx)
	if err != nil {
		if marketplace.IsAuthStatus(err) {
			return db.Credential{}, svcErr.Unauthenticated("session rejected", err)
		}
		return db.Credential{}, svcErr.Unavailable("verify session", err)
	}
	cred.ProfileID = identity.ProfileID
	cred.FirstName = identity.FirstName

	if err := s.creds.Save(ctx, cred); err != nil {
		return db.Credential{}, svcErr.Map(err)
	}
	s.log.Info("credential saved", "user_id", userID, "profile_id", cred.ProfileID)
	return cred, nil
}

// VerifyCredential re-checks a stored session against the marketplace. A
// rejected session disables the credential, the same way a failed sync or
// keep-alive does.
func (s *Service) VerifyCredential(ctx context.Context, userID string) (marketplace.Identity, error) {
	cred, err := s.creds.Get(ctx, userID)
	if err != nil {
		return marketplace.Identity{}, svcErr.Map(err)
	}

	identity, err := s.clientFor(cred).Verify(ctx)
	if err != nil {
		if marketplace.IsAuthStatus(err) {
			if derr := s.creds.SetEnabled(ctx, userID, false); derr != nil {
				s.log.Warn("disable credential failed", "user_id", userID, "err", derr)
			}
			return marketplace.Identity{}, svcErr.Unauthenticated("session expired", err)
		}
		return marketplace.Identity{}, svcErr.Unavailable("verify session", err)
	}

	// keep the stored identity fields current
	if identity.ProfileID != "" &&
		(identity.ProfileID != cred.ProfileID || identity.FirstName != cred.FirstName) {
		cred.ProfileID = identity.ProfileID
		cred.FirstName = identity.FirstName
		if err := s.creds.Save(ctx, cred); err != nil {
			s.log.Warn("credential refresh failed", "user_id", userID, "err", err)
		}
	}
	return identity, nil
}