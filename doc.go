// Package membership provides time-windowed tag memberships, capability
// guards, credential storage and signed single-purpose tokens for a small
// association portal.
//
// Memberships:
//   - A Tag is a named capability. A MemberTag row records one window
//     [Start, End) in which a member held a tag. At most one row per
//     member/tag pair is open at a time and rows are never deleted, so
//     the table doubles as the membership history.
//   - Grant and Revoke are idempotent where it makes sense: granting an
//     active tag returns the existing row, revoking an inactive one
//     returns ErrNotActive. SyncCapabilities applies a full desired set
//     in one transaction.
//
// Guards:
//   - Requirement is an OR over tag names. A Guard stacks requirements
//     that must all hold and reads the member's active capabilities once
//     per check. Anonymous members never pass a non-empty guard.
//
// Tokens:
//   - TokenService signs JSON payloads with a per purpose key derived from
//     the process secret. Verification tells tampered tokens apart from
//     expired or stale ones. Recover-key links go stale once the password
//     changes.
//
// Activity sinks:
//   - ActivitySink receives grant, revoke and credential events. Sinks run
//     best effort: errors are logged and never fail the mutation.
package membership
