// Package jobsculpt is the backend of a job board: accounts, sessions,
// device trust, profiles and job listings, served over fiber.
//
// Account workflow:
//   - Auther registers users, signs them in with a password or a Google
//     identity and issues HS256 session tokens. Tokens last one hour, or a
//     year when remember me is set. Logout revokes the token id in a
//     RevocationStore until the token would have expired anyway.
//   - Every sign in resolves a device fingerprint (browser and OS from the
//     user agent, platform client hint, IP location). Unknown devices are
//     recorded and the owner receives a new device alert. Alert failures
//     never fail the sign in.
//   - Email verification and password reset links carry purpose scoped
//     tokens. Reset tokens are single use.
//
// Job board:
//   - JobBoard lets employers post and delete listings and review
//     applicants. Job seekers search by skill and apply once per listing.
//
// Activity sinks:
//   - ActivitySink receives audit events for logins, devices, profile and
//     job changes. Sinks run best effort: errors are logged and never fail
//     the operation. See the activitymap package for a normalized log sink.
package jobsculpt
