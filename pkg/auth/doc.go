// Package auth provides credential hashing and request authorization for
// the gateway.
//
// This package includes:
// - PasswordHasher: bcrypt hashing for the shared API key
// - Authorizer: validates presented credentials against the stored key
//
// The Authorizer accepts both storage representations of the API key. A
// store created before the hashing migration holds the key as plaintext
// and is matched byte-for-byte; a store created or rotated afterwards
// holds a bcrypt hash and is matched by bcrypt verification. Both paths
// are always attempted so installs on either side of the migration keep
// working against the same gateway binary.
package auth
