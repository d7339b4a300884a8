// Package talestoken is the token core of the Tales service framework: a
// manager for generating and parsing compact JSON web tokens, a pluggable
// per-claim translation registry, and a capability-based access-control
// model for service operations.
//
// Features:
//   - Generation and parsing of compact JWS tokens (HS256/HS384/HS512, none)
//   - Per-claim codecs translating values to and from their JSON elements
//   - Declarative generation policy for issuer, id, and timing claims
//   - Capability families with compact bitset sets and an authorization
//     evaluator driven by per-operation requirement tables
//   - Optional revocation stores (in-memory, Redis, GORM)
//
// Signature failures and expiry are not errors; they are queryable state on
// the Token and on the authorization Decision. Errors are reserved for
// structural and configuration defects.
package talestoken
