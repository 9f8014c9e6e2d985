/*
Package ldap provides read-only Active Directory access for the schema reporter.

# Connection Management

A Client owns exactly one connection for the lifetime of a run:

  - Direct LDAP URLs, or SRV-based domain controller discovery
  - LDAPS, or StartTLS on plain connections
  - Kerberos (GSSAPI), simple bind, or anonymous authentication
  - Each candidate server is tried once; nothing is retried

# Searches

Search issues a single request; SearchWithPaging follows the simple paged
results control until the server returns an empty cookie. RootDSE reads
naming contexts such as schemaNamingContext.

# Errors

Failures are wrapped in LDAPError and classified into an ErrorCategory so
callers can tell an unreachable directory from a missing object.
*/
package ldap
