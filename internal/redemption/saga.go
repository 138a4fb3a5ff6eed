// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
saga.go - Invitation redemption

Redeeming an invitation provisions one external account per target server,
sequentially, then persists the resulting identity locally. Any provisioning
failure triggers a compensating pass that deletes the accounts created so
far, in reverse creation order, before the typed error surfaces.

Ordering contracts:
  - Servers are processed strictly sequentially in their configured order; a
    slow server never affects accounts on servers not yet reached.
  - An external ID joins the rollback candidate list the moment createUser
    succeeds, before any policy call, so a failed policy application still
    gets its account compensated.
  - Local rows are written only after every server succeeded, in one
    transaction; the use-count increment follows the local write.

Rollback is best effort. Individual deletion failures are logged and
counted, never surfaced: a secondary cleanup failure would obscure the
primary cause and gives the caller nothing actionable.
*/

package redemption

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/portarius/internal/database"
	"github.com/tomtom215/portarius/internal/events"
	"github.com/tomtom215/portarius/internal/invitation"
	"github.com/tomtom215/portarius/internal/logging"
	"github.com/tomtom215/portarius/internal/metrics"
	"github.com/tomtom215/portarius/internal/models"
	"github.com/tomtom215/portarius/internal/provider"
)

// Store is the slice of persistence the saga needs.
type Store interface {
	GetInvitationByCode(ctx context.Context, code string) (*models.Invitation, error)
	CreateIdentityWithUsers(ctx context.Context, identity *models.Identity, users []models.User) error
	RedeemInvitation(ctx context.Context, id string, now time.Time) error
}

// Publisher publishes domain events. Implementations must not block.
type Publisher interface {
	Publish(topic string, payload any)
}

// Request carries the end user's join form input.
type Request struct {
	Code     string
	Username string
	Password string
	Email    string

	// AuthToken is a provider-specific token (plex.tv) that lets the
	// adapter accept the resulting invite on the user's behalf.
	AuthToken string
}

// Saga orchestrates invitation redemption across target servers.
type Saga struct {
	store     Store
	clients   provider.ServerClientSource
	publisher Publisher

	// now is the clock; overridable in tests.
	now func() time.Time
}

// New creates a redemption saga. publisher may be nil.
func New(store Store, clients provider.ServerClientSource, publisher Publisher) *Saga {
	return &Saga{
		store:     store,
		clients:   clients,
		publisher: publisher,
		now:       time.Now,
	}
}

// defaultPermissions is the bundle applied when an invitation carries no
// override: streaming and transcoding on, downloads and sync off.
func defaultPermissions() map[string]bool {
	return map[string]bool{
		provider.PermStream:    true,
		provider.PermDownload:  false,
		provider.PermTranscode: true,
		provider.PermSync:      false,
	}
}

// effectivePermissions merges an invitation's overrides onto the defaults.
func effectivePermissions(overrides map[string]bool) map[string]bool {
	permissions := defaultPermissions()
	for key, value := range overrides {
		permissions[key] = value
	}
	return permissions
}

// Validate looks up an invitation by code and evaluates its status without
// mutating anything.
func (s *Saga) Validate(ctx context.Context, code string) (*models.Invitation, invitation.Status, error) {
	inv, err := s.store.GetInvitationByCode(ctx, code)
	if err != nil {
		return nil, "", err
	}
	return inv, invitation.Evaluate(inv, s.now()), nil
}

// createdAccount is a rollback candidate: one successfully created external
// account.
type createdAccount struct {
	server     models.MediaServer
	externalID string
}

// Redeem validates the invitation, provisions an account on every target
// server, persists the identity and increments the invitation's use count.
// On any provisioning failure the accounts created so far are deleted before
// the error returns.
func (s *Saga) Redeem(ctx context.Context, req Request) (*models.Identity, error) {
	start := s.now()

	inv, err := s.store.GetInvitationByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, database.ErrInvitationNotFound) {
			metrics.RedemptionsTotal.WithLabelValues("invalid").Inc()
		} else {
			metrics.RedemptionsTotal.WithLabelValues("failed").Inc()
		}
		return nil, err
	}

	if err := invitation.Check(inv, start); err != nil {
		metrics.RedemptionsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	permissions := effectivePermissions(inv.Permissions)

	created := make([]createdAccount, 0, len(inv.Servers))
	for i := range inv.Servers {
		server := inv.Servers[i]
		externalID, provErr := s.provisionServer(ctx, &server, inv, req, permissions)
		if externalID != "" {
			created = append(created, createdAccount{server: server, externalID: externalID})
			metrics.AccountsProvisioned.WithLabelValues(string(server.ServerType)).Inc()
		}
		if provErr != nil {
			s.rollback(ctx, created, inv, req, provErr)
			metrics.RedemptionsTotal.WithLabelValues("failed").Inc()
			metrics.RedemptionDuration.Observe(time.Since(start).Seconds())
			return nil, provErr
		}
	}

	var expiresAt *time.Time
	if inv.DurationDays != nil {
		t := start.AddDate(0, 0, *inv.DurationDays)
		expiresAt = &t
	}

	identity := &models.Identity{
		Username:  req.Username,
		Email:     req.Email,
		CreatedAt: start,
	}
	users := make([]models.User, 0, len(created))
	for _, account := range created {
		users = append(users, models.User{
			MediaServerID:  account.server.ID,
			ExternalUserID: account.externalID,
			Username:       req.Username,
			Email:          req.Email,
			Enabled:        true,
			ExpiresAt:      expiresAt,
			InvitationID:   inv.ID,
			CreatedAt:      start,
		})
	}

	if err := s.store.CreateIdentityWithUsers(ctx, identity, users); err != nil {
		s.rollback(ctx, created, inv, req, err)
		metrics.RedemptionsTotal.WithLabelValues("failed").Inc()
		metrics.RedemptionDuration.Observe(time.Since(start).Seconds())
		return nil, err
	}

	// The increment re-checks every validity condition. Losing this race
	// after accounts exist is logged for the admin rather than unwound:
	// the identity is durable and usable, only the counter drifted.
	if err := s.store.RedeemInvitation(ctx, inv.ID, start); err != nil {
		logging.Error().Err(err).
			Str("invitation_code", inv.Code).
			Str("identity_id", identity.ID).
			Msg("Identity persisted but use-count increment failed")
	}

	if s.publisher != nil {
		names := make([]string, 0, len(created))
		for _, account := range created {
			names = append(names, account.server.Name)
		}
		s.publisher.Publish(events.TopicIdentityProvisioned, events.IdentityProvisioned{
			IdentityID:     identity.ID,
			Username:       identity.Username,
			InvitationCode: inv.Code,
			ServerNames:    names,
			OccurredAt:     start,
		})
	}

	metrics.RedemptionsTotal.WithLabelValues("success").Inc()
	metrics.RedemptionDuration.Observe(time.Since(start).Seconds())
	logging.Info().
		Str("invitation_code", inv.Code).
		Str("identity_id", identity.ID).
		Int("servers", len(users)).
		Msg("Invitation redeemed")
	return identity, nil
}

// provisionServer creates one external account and applies the invitation's
// library and permission policy. The returned externalID is non-empty as
// soon as the account exists, even when a later policy step failed; callers
// use it for compensation.
func (s *Saga) provisionServer(ctx context.Context, server *models.MediaServer, inv *models.Invitation, req Request, permissions map[string]bool) (string, error) {
	client, err := s.clients.CreateClientForServer(server)
	if err != nil {
		return "", s.wrapError(server, "acquire client", err)
	}
	defer func() { _ = client.Close() }()

	caps := client.Capabilities()
	if !caps.Has(provider.CapCreateUser) {
		return "", s.wrapError(server, "create user", errors.New("provider cannot create users"))
	}

	account, err := client.CreateUser(ctx, provider.NewUser{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		AuthToken: req.AuthToken,
	})
	if err != nil {
		return "", s.wrapError(server, "create user", err)
	}

	if libraryIDs, restricted := inv.LibrariesForServer(server.ID); restricted {
		if caps.Has(provider.CapLibraryAccess) {
			if _, err := client.SetLibraryAccess(ctx, account.ID, libraryIDs); err != nil {
				return account.ID, s.wrapError(server, "restrict libraries", err)
			}
		} else {
			logging.Warn().
				Str("server", server.Name).
				Str("server_type", string(server.ServerType)).
				Msg("Invitation restricts libraries but provider cannot, granting default access")
		}
	}

	supported := supportedSubset(permissions, client.SupportedPermissions())
	if len(supported) > 0 {
		if _, err := client.UpdatePermissions(ctx, account.ID, supported); err != nil {
			return account.ID, s.wrapError(server, "apply permissions", err)
		}
	}

	return account.ID, nil
}

// supportedSubset filters the permission bundle to keys the adapter declares.
func supportedSubset(permissions map[string]bool, supported []string) map[string]bool {
	subset := make(map[string]bool, len(supported))
	for _, key := range supported {
		if value, ok := permissions[key]; ok {
			subset[key] = value
		}
	}
	return subset
}

// rollback deletes the created accounts in reverse creation order. Every
// candidate is attempted regardless of earlier deletion failures.
func (s *Saga) rollback(ctx context.Context, created []createdAccount, inv *models.Invitation, req Request, cause error) {
	if len(created) == 0 {
		return
	}

	clean := true
	for i := len(created) - 1; i >= 0; i-- {
		account := created[i]
		if err := s.deleteAccount(ctx, &account); err != nil {
			clean = false
			logging.Error().Err(err).
				Str("server", account.server.Name).
				Str("external_user_id", account.externalID).
				Msg("Rollback failed to delete external account")
		}
	}

	result := "clean"
	if !clean {
		result = "partial"
	}
	metrics.RollbacksTotal.WithLabelValues(result).Inc()

	var failedServer string
	var serverErr *ServerError
	if errors.As(cause, &serverErr) {
		failedServer = serverErr.ServerName
	}
	logging.Warn().
		Str("invitation_code", inv.Code).
		Str("username", req.Username).
		Str("failed_server", failedServer).
		Str("result", result).
		Int("accounts", len(created)).
		Msg("Redemption rolled back")

	if s.publisher != nil {
		s.publisher.Publish(events.TopicRedemptionRolledBack, events.RedemptionRolledBack{
			InvitationCode: inv.Code,
			Username:       req.Username,
			FailedServer:   failedServer,
			Result:         result,
			OccurredAt:     s.now(),
		})
	}
}

// deleteAccount compensates one created account with a fresh scoped client.
func (s *Saga) deleteAccount(ctx context.Context, account *createdAccount) error {
	client, err := s.clients.CreateClientForServer(&account.server)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	// A false return means the account was already gone, which is a
	// successful compensation.
	_, err = client.DeleteUser(ctx, account.externalID)
	return err
}

// wrapError converts a provider error into the saga's typed error.
func (s *Saga) wrapError(server *models.MediaServer, op string, err error) *ServerError {
	serverErr := &ServerError{
		ServerName: server.Name,
		ServerType: server.ServerType,
		Op:         op,
		Err:        err,
	}
	if ce, ok := provider.AsClientError(err); ok {
		serverErr.Code = ce.Code
	}
	return serverErr
}
