// Package auth resolves tokens and credentials into accountability —
// the identity context (user, role, admin/app flags, share scope)
// attached to every API request and realtime connection.
//
// Two token shapes are accepted:
//   - JWT access tokens signed by this instance (HS256, issuer "slate"),
//     short-lived and validated by signature alone.
//   - Static tokens: long-lived opaque strings assigned to a user account,
//     validated by hashed lookup. They carry no expiry.
//
// Sessions back the refresh flow: each login creates a session row keyed
// by the hash of its refresh token, and refreshing rotates the token in
// place. Passwords are hashed with Argon2id in PHC string format.
//
// Role flags (admin_access, app_access) tolerate loose storage — older
// databases hold them as integers or strings rather than booleans, so
// everything funnels through NormalizeBool before a policy decision.
package auth
